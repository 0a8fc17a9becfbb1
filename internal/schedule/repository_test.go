package schedule

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
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

func expectStaffExists(mock pgxmock.PgxPoolIface, staffID string, exists bool) {
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM staff`).
		WithArgs(staffID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(exists))
}

func TestWeeklyWindowsFillsClosedDays(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	expectStaffExists(mock, "staff-1", true)
	mock.ExpectQuery(`SELECT staff_id::text, weekday, is_available`).
		WithArgs("staff-1").
		WillReturnRows(pgxmock.NewRows([]string{"staff_id", "weekday", "is_available", "start_minute", "end_minute"}).
			AddRow("staff-1", 1, true, 540, 1020).
			AddRow("staff-1", 3, true, 600, 840))

	week, err := repo.WeeklyWindows(context.Background(), "staff-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(week) != 7 {
		t.Fatalf("expected 7 windows, got %d", len(week))
	}
	if !week[1].Available || week[1].StartMinute != 540 {
		t.Fatalf("monday mismatch: %+v", week[1])
	}
	if week[2].Available {
		t.Fatal("tuesday has no row and should come back closed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestWeeklyWindowsUnknownStaff(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	expectStaffExists(mock, "nobody", false)

	_, err := repo.WeeklyWindows(context.Background(), "nobody")
	if !errors.Is(err, ErrStaffNotFound) {
		t.Fatalf("expected ErrStaffNotFound, got %v", err)
	}
}

func TestReplaceWeeklyWindows(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	windows := []Window{
		{StaffID: "staff-1", Weekday: 1, Available: true, StartMinute: 540, EndMinute: 1020},
		{StaffID: "staff-1", Weekday: 2},
	}

	expectStaffExists(mock, "staff-1", true)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM staff_availability`).
		WithArgs("staff-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 7))
	mock.ExpectExec(`INSERT INTO staff_availability`).
		WithArgs("staff-1", 1, true, 540, 1020).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO staff_availability`).
		WithArgs("staff-1", 2, false, 0, 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if err := repo.ReplaceWeeklyWindows(context.Background(), "staff-1", windows); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestReplaceWeeklyWindowsRejectsInvalidWeek(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	bad := []Window{{StaffID: "staff-1", Weekday: 1, Available: true, StartMinute: 600, EndMinute: 600}}
	err := repo.ReplaceWeeklyWindows(context.Background(), "staff-1", bad)
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestWindowForMissingRowIsClosed(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	mock.ExpectQuery(`SELECT staff_id::text, weekday, is_available`).
		WithArgs("staff-1", 6).
		WillReturnRows(pgxmock.NewRows([]string{"staff_id", "weekday", "is_available", "start_minute", "end_minute"}))

	w, err := repo.WindowFor(context.Background(), "staff-1", 6)
	if err != nil {
		t.Fatal(err)
	}
	if w.Available {
		t.Fatal("missing row should be closed")
	}
	if w.Weekday != 6 || w.StaffID != "staff-1" {
		t.Fatalf("unexpected window %+v", w)
	}
}
