package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/bookwell/bookwell/internal/lifecycle"
	"github.com/bookwell/bookwell/internal/model"
)

// PaymentRecorder is the slice of the state machine the webhook drives.
type PaymentRecorder interface {
	RecordPayment(ctx context.Context, businessID, appointmentID string, status model.PaymentStatus) (model.Appointment, error)
}

// ProviderEventStore deduplicates provider webhook deliveries.
type ProviderEventStore interface {
	Seen(ctx context.Context, provider, eventID string) (bool, error)
	Record(ctx context.Context, provider, eventID, eventType string, payload []byte) error
}

// StripeWebhook translates Stripe payment events into payment status
// transitions. Signature verification is the auth; the route carries no JWT.
type StripeWebhook struct {
	recorder  PaymentRecorder
	events    ProviderEventStore
	logger    *slog.Logger
	secret    string
	tolerance time.Duration
}

func NewStripeWebhook(recorder PaymentRecorder, events ProviderEventStore, logger *slog.Logger, secret string, tolerance time.Duration) *StripeWebhook {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &StripeWebhook{
		recorder:  recorder,
		events:    events,
		logger:    logger,
		secret:    secret,
		tolerance: tolerance,
	}
}

func (h *StripeWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if strings.TrimSpace(h.secret) == "" {
		http.Error(w, "stripe webhook not configured", http.StatusServiceUnavailable)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MiB hard cap
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	evt, err := webhook.ConstructEventWithTolerance(body, sigHeader, h.secret, h.tolerance)
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	evtType := string(evt.Type)
	h.logger.Info("payment provider event received",
		"provider", "stripe",
		"provider_event_id", evt.ID,
		"event_type", evtType,
	)

	seen, err := h.events.Seen(r.Context(), "stripe", evt.ID)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	if seen {
		writeJSON(w, http.StatusOK, map[string]any{"status": "duplicate"})
		return
	}

	if err := h.apply(r.Context(), evt); err != nil {
		http.Error(w, "failed to apply payment event", http.StatusInternalServerError)
		return
	}

	if err := h.events.Record(r.Context(), "stripe", evt.ID, evtType, body); err != nil {
		// The transition already applied and is idempotent on replay, so a
		// failed dedup record only costs a retried delivery.
		http.Error(w, "failed to record provider event", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *StripeWebhook) apply(ctx context.Context, evt stripe.Event) error {
	var (
		businessID    string
		appointmentID string
		status        model.PaymentStatus
	)

	switch evt.Type {
	case "payment_intent.succeeded", "payment_intent.processing":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &intent); err != nil {
			h.logger.Error("stripe: invalid payment intent payload", "err", err)
			return nil
		}
		businessID = strings.TrimSpace(intent.Metadata["business_id"])
		appointmentID = strings.TrimSpace(intent.Metadata["appointment_id"])
		status = model.PaymentPaid
		if evt.Type == "payment_intent.processing" {
			status = model.PaymentPending
		}

	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(evt.Data.Raw, &charge); err != nil {
			h.logger.Error("stripe: invalid charge payload", "err", err)
			return nil
		}
		businessID = strings.TrimSpace(charge.Metadata["business_id"])
		appointmentID = strings.TrimSpace(charge.Metadata["appointment_id"])
		status = model.PaymentRefunded

	default:
		return nil
	}

	if businessID == "" || appointmentID == "" {
		h.logger.Warn("stripe: missing metadata (business_id/appointment_id)", "event_type", evt.Type)
		return nil
	}

	_, err := h.recorder.RecordPayment(ctx, businessID, appointmentID, status)
	if errors.Is(err, lifecycle.ErrNotFound) || errors.Is(err, lifecycle.ErrInvalidTransition) {
		// Replayed or out-of-order provider history; ack and move on.
		h.logger.Warn("stripe: payment event dropped",
			"appointment_id", appointmentID, "payment_status", status, "err", err)
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
