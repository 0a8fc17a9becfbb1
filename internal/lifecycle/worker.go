package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bookwell/bookwell/internal/model"
	"github.com/bookwell/bookwell/internal/outbox"
)

// CompletionWorker sweeps confirmed appointments whose end time has passed
// and marks them completed. Scheduled-but-never-confirmed appointments are
// left alone; a no-show is a business decision, not a completion.
type CompletionWorker struct {
	ledger    Ledger
	events    Events
	logger    *slog.Logger
	sweepEach time.Duration
	batchSize int
	now       func() time.Time
}

type CompletionConfig struct {
	SweepEach time.Duration
	BatchSize int
}

func NewCompletionWorker(ledger Ledger, events Events, logger *slog.Logger, cfg CompletionConfig) *CompletionWorker {
	if cfg.SweepEach <= 0 {
		cfg.SweepEach = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &CompletionWorker{
		ledger:    ledger,
		events:    events,
		logger:    logger,
		sweepEach: cfg.SweepEach,
		batchSize: cfg.BatchSize,
		now:       time.Now,
	}
}

func (w *CompletionWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.sweepEach)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.Sweep(ctx)
			if err != nil {
				w.logger.Error("completion sweep failed", "err", err)
				continue
			}
			if n > 0 {
				w.logger.Info("appointments completed", "count", n)
			}
		}
	}
}

// Sweep claims one batch with SKIP LOCKED and completes it. Multiple
// replicas can sweep concurrently without stepping on each other.
func (w *CompletionWorker) Sweep(ctx context.Context) (int, error) {
	tx, err := w.ledger.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	elapsed, err := w.ledger.ElapsedConfirmedForUpdate(ctx, tx, w.now(), w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(elapsed) == 0 {
		return 0, tx.Commit(ctx)
	}

	for _, appt := range elapsed {
		if err := w.ledger.UpdateStatus(ctx, tx, appt.ID, model.StatusCompleted); err != nil {
			return 0, err
		}
		appt.Status = model.StatusCompleted
		if err := w.appendCompleted(ctx, tx, appt); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(elapsed), nil
}

func (w *CompletionWorker) appendCompleted(ctx context.Context, tx pgx.Tx, appt model.Appointment) error {
	payload, err := marshalStatusPayload(appt, "")
	if err != nil {
		return err
	}
	return w.events.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentCompleted,
		Payload:       payload,
	})
}
