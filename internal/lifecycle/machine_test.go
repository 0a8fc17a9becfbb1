package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bookwell/bookwell/internal/model"
	"github.com/bookwell/bookwell/internal/outbox"
	"github.com/bookwell/bookwell/internal/policy"
)

type fakeLedger struct {
	mu    sync.Mutex
	appts map[string]*model.Appointment
}

type fakeTx struct{ pgx.Tx }

func (fakeTx) Commit(ctx context.Context) error   { return nil }
func (fakeTx) Rollback(ctx context.Context) error { return nil }

func newFakeLedger(appts ...model.Appointment) *fakeLedger {
	l := &fakeLedger{appts: make(map[string]*model.Appointment)}
	for _, a := range appts {
		appt := a
		l.appts[a.ID] = &appt
	}
	return l
}

func (l *fakeLedger) Begin(ctx context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

func (l *fakeLedger) GetForUpdate(ctx context.Context, tx pgx.Tx, businessID, appointmentID string) (model.Appointment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.appts[appointmentID]
	if !ok || a.BusinessID != businessID {
		return model.Appointment{}, pgx.ErrNoRows
	}
	return *a, nil
}

func (l *fakeLedger) Cancel(ctx context.Context, tx pgx.Tx, businessID, appointmentID, reason string) (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.appts[appointmentID]
	now := time.Now()
	a.Status = model.StatusCanceled
	a.CancelledAt = &now
	a.CancelReason = reason
	return now, nil
}

func (l *fakeLedger) UpdateStatus(ctx context.Context, tx pgx.Tx, appointmentID string, status model.AppointmentStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appts[appointmentID].Status = status
	return nil
}

func (l *fakeLedger) UpdatePaymentStatus(ctx context.Context, tx pgx.Tx, appointmentID string, status model.PaymentStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appts[appointmentID].PaymentStatus = status
	return nil
}

func (l *fakeLedger) MarkReminderSent(ctx context.Context, appointmentID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.appts[appointmentID]
	if !ok {
		return pgx.ErrNoRows
	}
	a.ReminderSent = true
	return nil
}

func (l *fakeLedger) ElapsedConfirmedForUpdate(ctx context.Context, tx pgx.Tx, cutoff time.Time, limit int) ([]model.Appointment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.Appointment
	for _, a := range l.appts {
		if a.Status != model.StatusConfirmed {
			continue
		}
		if a.EndTime().After(cutoff) {
			continue
		}
		out = append(out, *a)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []outbox.Event
}

func (f *fakeEvents) Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	return nil
}

func (f *fakeEvents) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		out = append(out, e.EventType)
	}
	return out
}

func testAppt(status model.AppointmentStatus, payment model.PaymentStatus) model.Appointment {
	return model.Appointment{
		ID:              "appt-1",
		BusinessID:      "biz-1",
		CustomerID:      "cust-1",
		StaffID:         "staff-1",
		ServiceID:       "svc-1",
		StartTime:       time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Status:          status,
		PaymentStatus:   payment,
	}
}

func testMachine(pol policy.BookingPolicy, appts ...model.Appointment) (*Machine, *fakeLedger, *fakeEvents) {
	ledger := newFakeLedger(appts...)
	events := &fakeEvents{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMachine(ledger, events, policy.Static{Policy: pol}, logger), ledger, events
}

func TestCancel(t *testing.T) {
	m, ledger, events := testMachine(policy.Default(), testAppt(model.StatusScheduled, model.PaymentUnpaid))
	ctx := context.Background()

	appt, err := m.Cancel(ctx, "biz-1", "appt-1", "customer request")
	if err != nil {
		t.Fatal(err)
	}
	if appt.Status != model.StatusCanceled || appt.CancelledAt == nil || appt.CancelReason != "customer request" {
		t.Fatalf("unexpected result %+v", appt)
	}
	if got := events.types(); len(got) != 1 || got[0] != outbox.EventAppointmentCanceled {
		t.Fatalf("unexpected events %v", got)
	}

	// Second cancel reports the repeat and emits nothing new.
	again, err := m.Cancel(ctx, "biz-1", "appt-1", "other reason")
	if !errors.Is(err, ErrAlreadyCanceled) {
		t.Fatalf("expected ErrAlreadyCanceled, got %v", err)
	}
	if again.CancelReason != "customer request" {
		t.Fatalf("repeat cancel must not overwrite the reason, got %q", again.CancelReason)
	}
	if got := events.types(); len(got) != 1 {
		t.Fatalf("repeat cancel emitted events: %v", got)
	}

	if ledger.appts["appt-1"].Status != model.StatusCanceled {
		t.Fatal("stored status should be canceled")
	}
}

func TestCancelCompletedRejected(t *testing.T) {
	m, _, _ := testMachine(policy.Default(), testAppt(model.StatusCompleted, model.PaymentPaid))
	_, err := m.Cancel(context.Background(), "biz-1", "appt-1", "too late")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancelNotFound(t *testing.T) {
	m, _, _ := testMachine(policy.Default())
	_, err := m.Cancel(context.Background(), "biz-1", "missing", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConfirm(t *testing.T) {
	m, _, events := testMachine(policy.Default(), testAppt(model.StatusScheduled, model.PaymentUnpaid))
	ctx := context.Background()

	appt, err := m.Confirm(ctx, "biz-1", "appt-1")
	if err != nil {
		t.Fatal(err)
	}
	if appt.Status != model.StatusConfirmed {
		t.Fatalf("got status %s", appt.Status)
	}

	// Repeat confirm is a no-op.
	if _, err := m.Confirm(ctx, "biz-1", "appt-1"); err != nil {
		t.Fatal(err)
	}
	if got := events.types(); len(got) != 1 || got[0] != outbox.EventAppointmentConfirmed {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestConfirmCanceledRejected(t *testing.T) {
	m, _, _ := testMachine(policy.Default(), testAppt(model.StatusCanceled, model.PaymentUnpaid))
	_, err := m.Confirm(context.Background(), "biz-1", "appt-1")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestRecordPaymentAutoConfirms(t *testing.T) {
	pol := policy.Default()
	pol.AutoConfirmOnPaid = true
	m, _, events := testMachine(pol, testAppt(model.StatusScheduled, model.PaymentUnpaid))

	appt, err := m.RecordPayment(context.Background(), "biz-1", "appt-1", model.PaymentPaid)
	if err != nil {
		t.Fatal(err)
	}
	if appt.PaymentStatus != model.PaymentPaid {
		t.Fatalf("got payment status %s", appt.PaymentStatus)
	}
	if appt.Status != model.StatusConfirmed {
		t.Fatalf("paid appointment should auto-confirm, got %s", appt.Status)
	}
	got := events.types()
	if len(got) != 2 || got[0] != outbox.EventPaymentRecorded || got[1] != outbox.EventAppointmentConfirmed {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestRecordPaymentNoAutoConfirm(t *testing.T) {
	m, _, _ := testMachine(policy.Default(), testAppt(model.StatusScheduled, model.PaymentUnpaid))

	appt, err := m.RecordPayment(context.Background(), "biz-1", "appt-1", model.PaymentPaid)
	if err != nil {
		t.Fatal(err)
	}
	if appt.Status != model.StatusScheduled {
		t.Fatalf("status should stay scheduled, got %s", appt.Status)
	}
}

func TestRecordPaymentRefundKeepsAppointment(t *testing.T) {
	m, _, _ := testMachine(policy.Default(), testAppt(model.StatusConfirmed, model.PaymentPaid))

	appt, err := m.RecordPayment(context.Background(), "biz-1", "appt-1", model.PaymentRefunded)
	if err != nil {
		t.Fatal(err)
	}
	if appt.PaymentStatus != model.PaymentRefunded {
		t.Fatalf("got payment status %s", appt.PaymentStatus)
	}
	if appt.Status != model.StatusConfirmed {
		t.Fatalf("refund must not touch the lifecycle axis, got %s", appt.Status)
	}
}

func TestRecordPaymentCanceledRejected(t *testing.T) {
	m, _, _ := testMachine(policy.Default(), testAppt(model.StatusCanceled, model.PaymentPending))
	_, err := m.RecordPayment(context.Background(), "biz-1", "appt-1", model.PaymentPaid)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestRecordPaymentInvalidTransition(t *testing.T) {
	m, _, _ := testMachine(policy.Default(), testAppt(model.StatusScheduled, model.PaymentPaid))
	_, err := m.RecordPayment(context.Background(), "biz-1", "appt-1", model.PaymentPending)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestRecordPaymentRepeatIsNoop(t *testing.T) {
	m, _, events := testMachine(policy.Default(), testAppt(model.StatusConfirmed, model.PaymentPaid))
	appt, err := m.RecordPayment(context.Background(), "biz-1", "appt-1", model.PaymentPaid)
	if err != nil {
		t.Fatal(err)
	}
	if appt.PaymentStatus != model.PaymentPaid {
		t.Fatalf("got %s", appt.PaymentStatus)
	}
	if len(events.types()) != 0 {
		t.Fatalf("repeat payment emitted events: %v", events.types())
	}
}

func TestMarkReminderSent(t *testing.T) {
	m, ledger, _ := testMachine(policy.Default(), testAppt(model.StatusConfirmed, model.PaymentPaid))
	if err := m.MarkReminderSent(context.Background(), "appt-1"); err != nil {
		t.Fatal(err)
	}
	if !ledger.appts["appt-1"].ReminderSent {
		t.Fatal("reminder flag not set")
	}
}

func TestCompletionSweep(t *testing.T) {
	confirmed := testAppt(model.StatusConfirmed, model.PaymentPaid)
	scheduled := testAppt(model.StatusScheduled, model.PaymentUnpaid)
	scheduled.ID = "appt-2"
	future := testAppt(model.StatusConfirmed, model.PaymentPaid)
	future.ID = "appt-3"
	future.StartTime = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	ledger := newFakeLedger(confirmed, scheduled, future)
	events := &fakeEvents{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewCompletionWorker(ledger, events, logger, CompletionConfig{})
	w.now = func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) }

	n, err := w.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 completion, got %d", n)
	}
	if ledger.appts["appt-1"].Status != model.StatusCompleted {
		t.Fatal("elapsed confirmed appointment should complete")
	}
	if ledger.appts["appt-2"].Status != model.StatusScheduled {
		t.Fatal("scheduled appointment must not complete")
	}
	if ledger.appts["appt-3"].Status != model.StatusConfirmed {
		t.Fatal("future appointment must not complete")
	}
	if got := events.types(); len(got) != 1 || got[0] != outbox.EventAppointmentCompleted {
		t.Fatalf("unexpected events %v", got)
	}
}
