package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bookwell/bookwell/internal/model"
)

type BookingRepository struct {
	db DB
}

func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

const appointmentColumns = `
	id::text, business_id::text, customer_id::text, staff_id::text, service_id::text,
	start_time, duration_minutes, capacity_slot, status, payment_status, reminder_sent,
	COALESCE(notes, ''), cancelled_at, COALESCE(cancellation_reason, ''), created_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	err := row.Scan(
		&appt.ID,
		&appt.BusinessID,
		&appt.CustomerID,
		&appt.StaffID,
		&appt.ServiceID,
		&appt.StartTime,
		&appt.DurationMinutes,
		&appt.CapacitySlot,
		&appt.Status,
		&appt.PaymentStatus,
		&appt.ReminderSent,
		&appt.Notes,
		&appt.CancelledAt,
		&appt.CancelReason,
		&appt.CreatedAt,
	)
	return appt, err
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// LockStaff takes a row lock on the staff member for the duration of the
// booking transaction. All bookings for one staff member serialize on this
// lock, which is what makes the read-count-insert sequence race-free.
func (r *BookingRepository) LockStaff(ctx context.Context, tx pgx.Tx, staffID string) error {
	var id string
	return tx.QueryRow(ctx, `
		SELECT id::text FROM staff WHERE id = $1 FOR UPDATE
	`, staffID).Scan(&id)
}

// Overlapping returns non-canceled appointments for the staff member whose
// interval intersects [start, end). Must run after LockStaff in the same
// transaction.
func (r *BookingRepository) Overlapping(ctx context.Context, tx pgx.Tx, staffID string, start, end time.Time) ([]model.Appointment, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE staff_id = $1
			AND status <> 'canceled'
			AND start_time < $3
			AND start_time + make_interval(mins => duration_minutes) > $2
		ORDER BY start_time ASC, capacity_slot ASC
	`, staffID, start, end)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// Insert writes the appointment row. The gist exclusion constraint turns a
// lost race into a 23P01, surfaced via IsConflict.
func (r *BookingRepository) Insert(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(business_id, customer_id, staff_id, service_id, start_time, duration_minutes,
			 capacity_slot, status, payment_status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id::text
	`, appt.BusinessID, appt.CustomerID, appt.StaffID, appt.ServiceID, appt.StartTime,
		appt.DurationMinutes, appt.CapacitySlot, appt.Status, appt.PaymentStatus, appt.Notes).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *BookingRepository) Get(ctx context.Context, businessID, appointmentID string) (model.Appointment, error) {
	return scanAppointment(r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND business_id = $2
	`, appointmentID, businessID))
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, businessID, appointmentID string) (model.Appointment, error) {
	return scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND business_id = $2
		FOR UPDATE
	`, appointmentID, businessID))
}

func (r *BookingRepository) Cancel(ctx context.Context, tx pgx.Tx, businessID, appointmentID, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'canceled',
			cancelled_at = now(),
			cancellation_reason = $3
		WHERE id = $1 AND business_id = $2
		RETURNING cancelled_at
	`, appointmentID, businessID, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, appointmentID string, status model.AppointmentStatus) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments SET status = $2 WHERE id = $1
	`, appointmentID, status)
	return err
}

func (r *BookingRepository) UpdatePaymentStatus(ctx context.Context, tx pgx.Tx, appointmentID string, status model.PaymentStatus) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments SET payment_status = $2 WHERE id = $1
	`, appointmentID, status)
	return err
}

func (r *BookingRepository) MarkReminderSent(ctx context.Context, appointmentID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE appointments SET reminder_sent = TRUE WHERE id = $1
	`, appointmentID)
	return err
}

// BookedIntervals returns the staff member's non-canceled appointments
// intersecting [start, end) for slot resolution. Read outside any
// transaction; the booking path re-checks under lock.
func (r *BookingRepository) BookedIntervals(ctx context.Context, businessID, staffID string, start, end time.Time) ([]model.Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE business_id = $1
			AND staff_id = $2
			AND status <> 'canceled'
			AND start_time < $4
			AND start_time + make_interval(mins => duration_minutes) > $3
		ORDER BY start_time ASC
	`, businessID, staffID, start, end)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *BookingRepository) ListByBusiness(ctx context.Context, businessID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE business_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *BookingRepository) ListByCustomer(ctx context.Context, businessID, customerID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE business_id = $1 AND customer_id = $2
		ORDER BY start_time DESC
		LIMIT $3
	`, businessID, customerID, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// ElapsedConfirmedForUpdate claims confirmed appointments whose end time has
// passed. SKIP LOCKED lets several workers drain the backlog concurrently.
func (r *BookingRepository) ElapsedConfirmedForUpdate(ctx context.Context, tx pgx.Tx, cutoff time.Time, limit int) ([]model.Appointment, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'confirmed'
			AND start_time + make_interval(mins => duration_minutes) <= $1
		ORDER BY start_time ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}
