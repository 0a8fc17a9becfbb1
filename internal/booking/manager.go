package booking

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/bookwell/bookwell/internal/availability"
	"github.com/bookwell/bookwell/internal/identity"
	"github.com/bookwell/bookwell/internal/model"
	"github.com/bookwell/bookwell/internal/outbox"
	"github.com/bookwell/bookwell/internal/policy"
	"github.com/bookwell/bookwell/internal/storage"
)

type BookRequest struct {
	BusinessID string
	ServiceID  string
	StaffID    string
	Start      time.Time
	Notes      string
	Customer   identity.Customer
}

// Manager owns the booking transaction: validate the request, re-derive the
// slot under the staff lock, assign a capacity seat, and commit the
// appointment together with its outbox event.
type Manager struct {
	catalog Catalog
	windows Windows
	ledger  Ledger
	events  Events
	policy  policy.Provider
	logger  *slog.Logger
	now     func() time.Time
}

func NewManager(catalog Catalog, windows Windows, ledger Ledger, events Events, pol policy.Provider, logger *slog.Logger) *Manager {
	return &Manager{
		catalog: catalog,
		windows: windows,
		ledger:  ledger,
		events:  events,
		policy:  pol,
		logger:  logger,
		now:     time.Now,
	}
}

type bookedPayload struct {
	AppointmentID   string    `json:"appointment_id"`
	BusinessID      string    `json:"business_id"`
	CustomerID      string    `json:"customer_id"`
	StaffID         string    `json:"staff_id"`
	ServiceID       string    `json:"service_id"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	PaymentStatus   string    `json:"payment_status"`
}

// Book creates the appointment or reports why it cannot exist. The requested
// start is never trusted: the slot is re-derived from the schedule and the
// current ledger inside the transaction, so a stale slot list on the client
// cannot produce a double booking.
func (m *Manager) Book(ctx context.Context, req BookRequest) (model.Appointment, error) {
	if req.Customer.ID == "" || req.Customer.BusinessID != req.BusinessID {
		return model.Appointment{}, ErrCustomerRequired
	}

	pol, err := m.policy.PolicyFor(ctx, req.BusinessID)
	if err != nil {
		return model.Appointment{}, err
	}
	loc := pol.Location()
	start := req.Start.In(loc)
	now := m.now().In(loc)

	svc, err := m.catalog.ServiceByID(ctx, req.BusinessID, req.ServiceID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, ErrServiceNotFound
		}
		return model.Appointment{}, err
	}
	staff, err := m.catalog.StaffByID(ctx, req.BusinessID, req.StaffID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, ErrStaffNotFound
		}
		return model.Appointment{}, err
	}
	if !staff.IsActive {
		return model.Appointment{}, ErrStaffNotFound
	}

	if svc.DurationMinutes <= 0 {
		return model.Appointment{}, ErrInvalidDuration
	}
	duration := time.Duration(svc.DurationMinutes) * time.Minute
	end := start.Add(duration)

	if err := m.checkSlot(ctx, svc, req.StaffID, start, end, now, pol); err != nil {
		return model.Appointment{}, err
	}

	paymentStatus := model.PaymentUnpaid
	if pol.RequireUpfrontPayment {
		paymentStatus = model.PaymentPending
	}

	appt := model.Appointment{
		BusinessID:      req.BusinessID,
		CustomerID:      req.Customer.ID,
		StaffID:         req.StaffID,
		ServiceID:       req.ServiceID,
		StartTime:       start,
		DurationMinutes: svc.DurationMinutes,
		Status:          model.StatusScheduled,
		PaymentStatus:   paymentStatus,
		Notes:           req.Notes,
	}

	tx, err := m.ledger.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := m.ledger.LockStaff(ctx, tx, req.StaffID); err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, ErrStaffNotFound
		}
		return model.Appointment{}, err
	}

	existing, err := m.ledger.Overlapping(ctx, tx, req.StaffID, start, end)
	if err != nil {
		return model.Appointment{}, err
	}
	seat, err := assignSeat(svc, start, existing)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.CapacitySlot = seat

	id, err := m.ledger.Insert(ctx, tx, &appt)
	if err != nil {
		if storage.IsConflict(err) {
			return model.Appointment{}, ErrSlotUnavailable
		}
		return model.Appointment{}, err
	}
	appt.ID = id

	payload, err := json.Marshal(bookedPayload{
		AppointmentID:   appt.ID,
		BusinessID:      appt.BusinessID,
		CustomerID:      appt.CustomerID,
		StaffID:         appt.StaffID,
		ServiceID:       appt.ServiceID,
		StartTime:       appt.StartTime,
		DurationMinutes: appt.DurationMinutes,
		Status:          string(appt.Status),
		PaymentStatus:   string(appt.PaymentStatus),
	})
	if err != nil {
		return model.Appointment{}, err
	}
	if err := m.events.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentBooked,
		Payload:       payload,
	}); err != nil {
		return model.Appointment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}

	m.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"business_id", appt.BusinessID,
		"staff_id", appt.StaffID,
		"service_id", appt.ServiceID,
		"start_time", appt.StartTime,
		"capacity_slot", appt.CapacitySlot,
	)
	return appt, nil
}

// checkSlot re-derives the requested start the same way the resolver offers
// it. Everything here is advisory except the final insert: the exclusion
// constraint has the last word.
func (m *Manager) checkSlot(ctx context.Context, svc model.Service, staffID string, start, end, now time.Time, pol policy.BookingPolicy) error {
	if !start.After(now) {
		return ErrSlotUnavailable
	}

	window, err := m.windows.WindowFor(ctx, staffID, int(start.Weekday()))
	if err != nil {
		return err
	}
	if !window.Available {
		return ErrSlotUnavailable
	}
	windowStart, windowEnd := window.Bounds(start)
	if !availability.FitsWindow(windowStart, windowEnd, start, end) {
		return ErrSlotUnavailable
	}

	if svc.Type.FixedSchedule() {
		if !svc.OccursOn(int(start.Weekday())) {
			return ErrSlotUnavailable
		}
		minute := start.Hour()*60 + start.Minute()
		if minute != svc.ClassStartMinute || start.Second() != 0 || start.Nanosecond() != 0 {
			return ErrSlotUnavailable
		}
		return nil
	}

	// Free-form bookings stay on the policy's slot grid.
	offset := start.Sub(windowStart)
	if offset < 0 || offset%pol.Step() != 0 {
		return ErrSlotUnavailable
	}
	return nil
}
