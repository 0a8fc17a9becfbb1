package storage

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/bookwell/bookwell/internal/model"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func appointmentRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "business_id", "customer_id", "staff_id", "service_id",
		"start_time", "duration_minutes", "capacity_slot", "status", "payment_status",
		"reminder_sent", "notes", "cancelled_at", "cancellation_reason", "created_at",
	})
}

func TestInsertSurfacesExclusionConflict(t *testing.T) {
	mock := newMock(t)
	repo := NewBookingRepository(mock)

	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs("biz-1", "cust-1", "staff-1", "svc-1", start, 60, 0,
			model.StatusScheduled, model.PaymentUnpaid, "").
		WillReturnError(&pgconn.PgError{Code: "23P01"})

	tx, err := repo.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback(context.Background())

	appt := &model.Appointment{
		BusinessID:      "biz-1",
		CustomerID:      "cust-1",
		StaffID:         "staff-1",
		ServiceID:       "svc-1",
		StartTime:       start,
		DurationMinutes: 60,
		Status:          model.StatusScheduled,
		PaymentStatus:   model.PaymentUnpaid,
	}
	_, err = repo.Insert(context.Background(), tx, appt)
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestOverlappingReturnsSeats(t *testing.T) {
	mock := newMock(t)
	repo := NewBookingRepository(mock)

	start := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id::text FROM staff`).
		WithArgs("staff-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("staff-1"))
	mock.ExpectQuery(`FROM appointments`).
		WithArgs("staff-1", start, start.Add(time.Hour)).
		WillReturnRows(appointmentRows().
			AddRow("appt-1", "biz-1", "cust-1", "staff-1", "svc-1",
				start, 60, 0, model.StatusScheduled, model.PaymentUnpaid,
				false, "", (*time.Time)(nil), "", created).
			AddRow("appt-2", "biz-1", "cust-2", "staff-1", "svc-1",
				start, 60, 1, model.StatusConfirmed, model.PaymentPaid,
				false, "", (*time.Time)(nil), "", created))

	ctx := context.Background()
	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback(ctx)

	if err := repo.LockStaff(ctx, tx, "staff-1"); err != nil {
		t.Fatal(err)
	}
	appts, err := repo.Overlapping(ctx, tx, "staff-1", start, start.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(appts) != 2 {
		t.Fatalf("expected 2 overlapping appointments, got %d", len(appts))
	}
	if appts[0].CapacitySlot != 0 || appts[1].CapacitySlot != 1 {
		t.Fatalf("unexpected slots %d, %d", appts[0].CapacitySlot, appts[1].CapacitySlot)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestLockStaffUnknownStaff(t *testing.T) {
	mock := newMock(t)
	repo := NewBookingRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id::text FROM staff`).
		WithArgs("nobody").
		WillReturnError(pgx.ErrNoRows)

	ctx := context.Background()
	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback(ctx)

	if err := repo.LockStaff(ctx, tx, "nobody"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCancelReturnsTimestamp(t *testing.T) {
	mock := newMock(t)
	repo := NewBookingRepository(mock)

	cancelledAt := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE appointments`).
		WithArgs("appt-1", "biz-1", "customer request").
		WillReturnRows(pgxmock.NewRows([]string{"cancelled_at"}).AddRow(cancelledAt))

	ctx := context.Background()
	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback(ctx)

	got, err := repo.Cancel(ctx, tx, "biz-1", "appt-1", "customer request")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(cancelledAt) {
		t.Fatalf("got %s, want %s", got, cancelledAt)
	}
}
