package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bookwell/bookwell/internal/model"
	"github.com/bookwell/bookwell/internal/outbox"
	"github.com/bookwell/bookwell/internal/policy"
	"github.com/bookwell/bookwell/internal/storage"
)

var (
	ErrNotFound          = errors.New("appointment not found")
	ErrAlreadyCanceled   = errors.New("appointment already canceled")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Ledger is the appointment store surface the state machine drives.
// *storage.BookingRepository implements it.
type Ledger interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, businessID, appointmentID string) (model.Appointment, error)
	Cancel(ctx context.Context, tx pgx.Tx, businessID, appointmentID, reason string) (time.Time, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, appointmentID string, status model.AppointmentStatus) error
	UpdatePaymentStatus(ctx context.Context, tx pgx.Tx, appointmentID string, status model.PaymentStatus) error
	MarkReminderSent(ctx context.Context, appointmentID string) error
	ElapsedConfirmedForUpdate(ctx context.Context, tx pgx.Tx, cutoff time.Time, limit int) ([]model.Appointment, error)
}

type Events interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

// Machine applies status transitions. Every mutation loads the row FOR
// UPDATE first, so two concurrent transitions on one appointment serialize
// and the second sees the first's result.
type Machine struct {
	ledger Ledger
	events Events
	policy policy.Provider
	logger *slog.Logger
}

func NewMachine(ledger Ledger, events Events, pol policy.Provider, logger *slog.Logger) *Machine {
	return &Machine{ledger: ledger, events: events, policy: pol, logger: logger}
}

type statusPayload struct {
	AppointmentID string `json:"appointment_id"`
	BusinessID    string `json:"business_id"`
	CustomerID    string `json:"customer_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	Reason        string `json:"reason,omitempty"`
}

// Cancel soft-cancels the appointment and frees its capacity unit for the
// next slot read. A repeat cancel reports ErrAlreadyCanceled alongside the
// unchanged row; canceling a completed appointment is invalid.
func (m *Machine) Cancel(ctx context.Context, businessID, appointmentID, reason string) (model.Appointment, error) {
	tx, err := m.ledger.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := m.ledger.GetForUpdate(ctx, tx, businessID, appointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, err
	}
	if appt.Status == model.StatusCanceled {
		if err := tx.Commit(ctx); err != nil {
			return model.Appointment{}, err
		}
		return appt, ErrAlreadyCanceled
	}
	if !appt.Status.CanTransition(model.StatusCanceled) {
		return model.Appointment{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, model.StatusCanceled)
	}

	cancelledAt, err := m.ledger.Cancel(ctx, tx, businessID, appointmentID, reason)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.StatusCanceled
	appt.CancelledAt = &cancelledAt
	appt.CancelReason = reason

	if err := m.appendStatusEvent(ctx, tx, outbox.EventAppointmentCanceled, appt, reason); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}

	m.logger.Info("appointment canceled",
		"appointment_id", appt.ID, "business_id", appt.BusinessID, "reason", reason)
	return appt, nil
}

// Confirm moves a scheduled appointment to confirmed. Confirming twice is a
// no-op.
func (m *Machine) Confirm(ctx context.Context, businessID, appointmentID string) (model.Appointment, error) {
	tx, err := m.ledger.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := m.ledger.GetForUpdate(ctx, tx, businessID, appointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, err
	}
	if appt.Status == model.StatusConfirmed {
		return appt, tx.Commit(ctx)
	}
	if !appt.Status.CanTransition(model.StatusConfirmed) {
		return model.Appointment{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, model.StatusConfirmed)
	}

	if err := m.ledger.UpdateStatus(ctx, tx, appointmentID, model.StatusConfirmed); err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.StatusConfirmed

	if err := m.appendStatusEvent(ctx, tx, outbox.EventAppointmentConfirmed, appt, ""); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}

	m.logger.Info("appointment confirmed", "appointment_id", appt.ID, "business_id", appt.BusinessID)
	return appt, nil
}

// RecordPayment advances the payment axis. A paid appointment auto-confirms
// when the business policy says so; payment state never resurrects a
// canceled appointment.
func (m *Machine) RecordPayment(ctx context.Context, businessID, appointmentID string, status model.PaymentStatus) (model.Appointment, error) {
	if !status.Valid() {
		return model.Appointment{}, fmt.Errorf("%w: unknown payment status %q", ErrInvalidTransition, status)
	}

	tx, err := m.ledger.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := m.ledger.GetForUpdate(ctx, tx, businessID, appointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, err
	}
	if appt.Status == model.StatusCanceled {
		return model.Appointment{}, fmt.Errorf("%w: appointment is canceled", ErrInvalidTransition)
	}
	if appt.PaymentStatus == status {
		return appt, tx.Commit(ctx)
	}
	if !appt.PaymentStatus.CanTransition(status) {
		return model.Appointment{}, fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, appt.PaymentStatus, status)
	}

	if err := m.ledger.UpdatePaymentStatus(ctx, tx, appointmentID, status); err != nil {
		return model.Appointment{}, err
	}
	appt.PaymentStatus = status

	if err := m.appendStatusEvent(ctx, tx, outbox.EventPaymentRecorded, appt, ""); err != nil {
		return model.Appointment{}, err
	}

	if status == model.PaymentPaid && appt.Status == model.StatusScheduled {
		pol, err := m.policy.PolicyFor(ctx, businessID)
		if err != nil {
			return model.Appointment{}, err
		}
		if pol.AutoConfirmOnPaid {
			if err := m.ledger.UpdateStatus(ctx, tx, appointmentID, model.StatusConfirmed); err != nil {
				return model.Appointment{}, err
			}
			appt.Status = model.StatusConfirmed
			if err := m.appendStatusEvent(ctx, tx, outbox.EventAppointmentConfirmed, appt, ""); err != nil {
				return model.Appointment{}, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}

	m.logger.Info("payment recorded",
		"appointment_id", appt.ID, "business_id", appt.BusinessID,
		"payment_status", appt.PaymentStatus, "status", appt.Status)
	return appt, nil
}

// MarkReminderSent flips the reminder flag. It carries no status semantics,
// so it skips the transaction machinery.
func (m *Machine) MarkReminderSent(ctx context.Context, appointmentID string) error {
	return m.ledger.MarkReminderSent(ctx, appointmentID)
}

func marshalStatusPayload(appt model.Appointment, reason string) ([]byte, error) {
	return json.Marshal(statusPayload{
		AppointmentID: appt.ID,
		BusinessID:    appt.BusinessID,
		CustomerID:    appt.CustomerID,
		Status:        string(appt.Status),
		PaymentStatus: string(appt.PaymentStatus),
		Reason:        reason,
	})
}

func (m *Machine) appendStatusEvent(ctx context.Context, tx pgx.Tx, eventType string, appt model.Appointment, reason string) error {
	payload, err := marshalStatusPayload(appt, reason)
	if err != nil {
		return err
	}
	return m.events.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}
