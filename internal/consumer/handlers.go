package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/bookwell/bookwell/internal/lifecycle"
	"github.com/bookwell/bookwell/internal/model"
)

// Topics this service consumes. Payment updates arrive from the payments
// platform; reminder confirmations from the notification pipeline.
const (
	TopicPaymentUpdated = "payments.payment.updated.v1"
	TopicReminderSent   = "notify.reminder.sent.v1"
)

type paymentUpdatedPayload struct {
	AppointmentID string `json:"appointment_id"`
	BusinessID    string `json:"business_id"`
	PaymentStatus string `json:"payment_status"`
}

type reminderSentPayload struct {
	AppointmentID string `json:"appointment_id"`
}

// PaymentUpdated applies externally observed payment changes to the
// appointment. Events for unknown appointments or stale transitions are
// dropped: the upstream feed replays history and is not strictly ordered.
func PaymentUpdated(machine *lifecycle.Machine) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var p paymentUpdatedPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("decode payment update: %w", err)
		}
		if p.AppointmentID == "" || p.BusinessID == "" {
			return fmt.Errorf("payment update missing identifiers")
		}

		_, err := machine.RecordPayment(ctx, p.BusinessID, p.AppointmentID, model.PaymentStatus(p.PaymentStatus))
		if errors.Is(err, lifecycle.ErrNotFound) || errors.Is(err, lifecycle.ErrInvalidTransition) {
			return nil
		}
		return err
	}
}

// ReminderSent flags the appointment after the notification pipeline
// confirms delivery.
func ReminderSent(machine *lifecycle.Machine) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var p reminderSentPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("decode reminder confirmation: %w", err)
		}
		if p.AppointmentID == "" {
			return fmt.Errorf("reminder confirmation missing appointment_id")
		}
		return machine.MarkReminderSent(ctx, p.AppointmentID)
	}
}
