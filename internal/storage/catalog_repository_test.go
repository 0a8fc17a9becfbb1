package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/bookwell/bookwell/internal/model"
)

func testTime() time.Time {
	return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func TestCreateStaffSeedsDefaultWeek(t *testing.T) {
	mock := newMock(t)
	repo := NewCatalogRepository(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO staff`).
		WithArgs(pgxmock.AnyArg(), "biz-1", "Dana").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	for wd := 0; wd <= 6; wd++ {
		open := wd >= 1 && wd <= 5
		startMinute, endMinute := 0, 0
		if open {
			startMinute, endMinute = 540, 1020
		}
		mock.ExpectExec(`INSERT INTO staff_availability`).
			WithArgs(pgxmock.AnyArg(), wd, open, startMinute, endMinute).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	id, err := repo.CreateStaff(context.Background(), &model.Staff{BusinessID: "biz-1", Name: "Dana"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("unexpected id %q", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateServiceValidates(t *testing.T) {
	mock := newMock(t)
	repo := NewCatalogRepository(mock)

	bad := &model.Service{BusinessID: "biz-1", Name: "Cut", Type: model.ServiceIndividual, DurationMinutes: 0, Capacity: 1}
	if _, err := repo.CreateService(context.Background(), bad); !errors.Is(err, model.ErrInvalidService) {
		t.Fatalf("expected ErrInvalidService, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestServiceByIDScansClassDays(t *testing.T) {
	mock := newMock(t)
	repo := NewCatalogRepository(mock)

	mock.ExpectQuery(`FROM business_services`).
		WithArgs("svc-1", "biz-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "business_id", "name", "service_type", "duration_minutes", "capacity",
			"class_days", "class_start_minute", "sessions_per_month", "price", "created_at",
		}).AddRow("svc-1", "biz-1", "Yoga", model.ServiceClass, 60, 8,
			[]int32{1, 3}, 1080, 0, "25.00", testTime()))

	svc, err := repo.ServiceByID(context.Background(), "biz-1", "svc-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(svc.ClassDays) != 2 || svc.ClassDays[0] != 1 || svc.ClassDays[1] != 3 {
		t.Fatalf("unexpected class days %v", svc.ClassDays)
	}
	if !svc.Type.FixedSchedule() {
		t.Fatal("class service should be fixed-schedule")
	}
}
