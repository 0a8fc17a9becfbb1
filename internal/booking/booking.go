package booking

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bookwell/bookwell/internal/model"
	"github.com/bookwell/bookwell/internal/outbox"
	"github.com/bookwell/bookwell/internal/schedule"
)

// Catalog looks up the bookable surface. *storage.CatalogRepository
// implements it.
type Catalog interface {
	ServiceByID(ctx context.Context, businessID, serviceID string) (model.Service, error)
	StaffByID(ctx context.Context, businessID, staffID string) (model.Staff, error)
}

// Windows serves the weekly availability. *schedule.Repository implements it.
type Windows interface {
	WindowFor(ctx context.Context, staffID string, weekday int) (schedule.Window, error)
}

// Ledger is the appointment store. *storage.BookingRepository implements it;
// tests use an in-memory fake.
type Ledger interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	LockStaff(ctx context.Context, tx pgx.Tx, staffID string) error
	Overlapping(ctx context.Context, tx pgx.Tx, staffID string, start, end time.Time) ([]model.Appointment, error)
	Insert(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error)
	BookedIntervals(ctx context.Context, businessID, staffID string, start, end time.Time) ([]model.Appointment, error)
}

// Events appends domain events inside the booking transaction.
// *outbox.Repository implements it.
type Events interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

// assignSeat picks the capacity slot a new booking occupies, given every
// non-canceled appointment overlapping [start, end) for the staff member.
//
// Individual services take seat 0 of an empty interval. Fixed-schedule
// services share seats with bookings of the same service occurrence (same
// service, same start); any other overlapping appointment means the staff
// member is occupied and the interval is closed outright.
func assignSeat(svc model.Service, start time.Time, existing []model.Appointment) (int, error) {
	capacity := svc.BookingCapacity()
	if capacity == 1 {
		if len(existing) > 0 {
			return 0, ErrSlotUnavailable
		}
		return 0, nil
	}

	taken := make(map[int]bool, len(existing))
	for _, a := range existing {
		if a.ServiceID == svc.ID && a.StartTime.Equal(start) {
			taken[a.CapacitySlot] = true
			continue
		}
		return 0, ErrSlotUnavailable
	}
	for seat := 0; seat < capacity; seat++ {
		if !taken[seat] {
			return seat, nil
		}
	}
	return 0, ErrSlotUnavailable
}
