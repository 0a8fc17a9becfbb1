package booking

import (
	"context"
	"time"

	"github.com/bookwell/bookwell/internal/availability"
	"github.com/bookwell/bookwell/internal/model"
	"github.com/bookwell/bookwell/internal/policy"
	"github.com/bookwell/bookwell/internal/storage"
)

// Resolver computes the bookable start times for one service, staff member
// and calendar day. Results are advisory: the booking transaction re-derives
// the slot under lock before committing.
type Resolver struct {
	catalog Catalog
	windows Windows
	ledger  Ledger
	policy  policy.Provider
	now     func() time.Time
}

func NewResolver(catalog Catalog, windows Windows, ledger Ledger, pol policy.Provider) *Resolver {
	return &Resolver{
		catalog: catalog,
		windows: windows,
		ledger:  ledger,
		policy:  pol,
		now:     time.Now,
	}
}

// ListSlots returns slot start times in the business timezone for the given
// day. Only the civil date of `day` matters; it is re-anchored in the
// business timezone. A closed day, a fully booked day, or a day in the past
// all come back as an empty list, not an error.
func (r *Resolver) ListSlots(ctx context.Context, businessID, serviceID, staffID string, day time.Time) ([]time.Time, error) {
	pol, err := r.policy.PolicyFor(ctx, businessID)
	if err != nil {
		return nil, err
	}
	loc := pol.Location()
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	now := r.now().In(loc)

	svc, err := r.catalog.ServiceByID(ctx, businessID, serviceID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	staff, err := r.catalog.StaffByID(ctx, businessID, staffID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrStaffNotFound
		}
		return nil, err
	}
	if !staff.IsActive {
		return nil, ErrStaffNotFound
	}

	window, err := r.windows.WindowFor(ctx, staffID, int(day.Weekday()))
	if err != nil {
		return nil, err
	}
	if !window.Available {
		return nil, nil
	}
	windowStart, windowEnd := window.Bounds(day)

	busy, err := r.ledger.BookedIntervals(ctx, businessID, staffID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	duration := time.Duration(svc.DurationMinutes) * time.Minute

	if svc.Type.FixedSchedule() {
		return r.classSlots(svc, day, windowStart, windowEnd, duration, busy, now), nil
	}

	intervals := make([]availability.Interval, 0, len(busy))
	for _, a := range busy {
		intervals = append(intervals, availability.Interval{Start: a.StartTime, End: a.EndTime()})
	}
	return availability.AvailableSlots(windowStart, windowEnd, duration, pol.Step(), intervals, 1, now), nil
}

// classSlots offers at most one start per day: the service's scheduled
// occurrence, when the day matches, the occurrence fits the staff window,
// and a seat is free.
func (r *Resolver) classSlots(svc model.Service, day time.Time, windowStart, windowEnd time.Time, duration time.Duration, busy []model.Appointment, now time.Time) []time.Time {
	if !svc.OccursOn(int(day.Weekday())) {
		return nil
	}
	base := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	start := base.Add(time.Duration(svc.ClassStartMinute) * time.Minute)
	end := start.Add(duration)

	if start.Before(now) {
		return nil
	}
	if !availability.FitsWindow(windowStart, windowEnd, start, end) {
		return nil
	}

	var overlapping []model.Appointment
	for _, a := range busy {
		if a.StartTime.Before(end) && start.Before(a.EndTime()) {
			overlapping = append(overlapping, a)
		}
	}
	if _, err := assignSeat(svc, start, overlapping); err != nil {
		return nil
	}
	return []time.Time{start}
}
