package model

import "time"

// AppointmentStatus is the lifecycle axis of an appointment. Transitions are
// validated with CanTransition; anything else is rejected at the boundary.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCanceled  AppointmentStatus = "canceled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// Terminal reports whether no further status transitions are allowed.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

func (s AppointmentStatus) CanTransition(to AppointmentStatus) bool {
	switch s {
	case StatusScheduled:
		return to == StatusConfirmed || to == StatusCanceled
	case StatusConfirmed:
		return to == StatusCompleted || to == StatusCanceled
	}
	return false
}

// PaymentStatus is the payment axis, orthogonal to AppointmentStatus.
// A refund does not cancel the appointment; that stays a business decision.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentUnpaid, PaymentPending, PaymentPaid, PaymentRefunded:
		return true
	}
	return false
}

func (p PaymentStatus) CanTransition(to PaymentStatus) bool {
	switch p {
	case PaymentUnpaid:
		return to == PaymentPending || to == PaymentPaid
	case PaymentPending:
		return to == PaymentPaid || to == PaymentRefunded
	case PaymentPaid:
		return to == PaymentRefunded
	}
	return false
}

// Appointment is a row in the booking ledger. DurationMinutes is copied from
// the service at booking time so later service edits never shift past
// bookings. CapacitySlot is the per-staff concurrency unit the row occupies;
// the database excludes two non-canceled rows for the same staff, slot index
// and overlapping time range.
type Appointment struct {
	ID              string
	BusinessID      string
	CustomerID      string
	StaffID         string
	ServiceID       string
	StartTime       time.Time
	DurationMinutes int
	CapacitySlot    int
	Status          AppointmentStatus
	PaymentStatus   PaymentStatus
	ReminderSent    bool
	Notes           string
	CancelledAt     *time.Time
	CancelReason    string
	CreatedAt       time.Time
}

// EndTime is the exclusive end of the occupied interval.
func (a Appointment) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}
