package schedule

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs; pgxmock satisfies
// it in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// WeeklyWindows returns all seven windows for the staff member, filling
// weekdays without a stored row as closed.
func (r *Repository) WeeklyWindows(ctx context.Context, staffID string) ([]Window, error) {
	if err := r.staffExists(ctx, staffID); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT staff_id::text, weekday, is_available, start_minute, end_minute
		FROM staff_availability
		WHERE staff_id = $1
		ORDER BY weekday ASC
	`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	week := make([]Window, 7)
	for wd := range week {
		week[wd] = Window{StaffID: staffID, Weekday: wd}
	}
	for rows.Next() {
		var w Window
		if err := rows.Scan(&w.StaffID, &w.Weekday, &w.Available, &w.StartMinute, &w.EndMinute); err != nil {
			return nil, err
		}
		if w.Weekday >= 0 && w.Weekday <= 6 {
			week[w.Weekday] = w
		}
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return week, nil
}

// WindowFor returns the window for a single weekday, closed when no row
// exists.
func (r *Repository) WindowFor(ctx context.Context, staffID string, weekday int) (Window, error) {
	var w Window
	err := r.db.QueryRow(ctx, `
		SELECT staff_id::text, weekday, is_available, start_minute, end_minute
		FROM staff_availability
		WHERE staff_id = $1 AND weekday = $2
	`, staffID, weekday).Scan(&w.StaffID, &w.Weekday, &w.Available, &w.StartMinute, &w.EndMinute)
	if err == nil {
		return w, nil
	}
	if err == pgx.ErrNoRows {
		return Window{StaffID: staffID, Weekday: weekday}, nil
	}
	return Window{}, err
}

// ReplaceWeeklyWindows swaps the staff member's whole week in one
// transaction. Partial updates are not supported: replacing wholesale keeps a
// half-applied schedule from ever being observable.
func (r *Repository) ReplaceWeeklyWindows(ctx context.Context, staffID string, windows []Window) error {
	if err := ValidateWeek(windows); err != nil {
		return err
	}
	if err := r.staffExists(ctx, staffID); err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM staff_availability WHERE staff_id = $1`, staffID); err != nil {
		return err
	}
	for _, w := range windows {
		if _, err := tx.Exec(ctx, `
			INSERT INTO staff_availability (staff_id, weekday, is_available, start_minute, end_minute)
			VALUES ($1, $2, $3, $4, $5)
		`, staffID, w.Weekday, w.Available, w.StartMinute, w.EndMinute); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// DeleteForStaff removes a departed staff member's schedule.
func (r *Repository) DeleteForStaff(ctx context.Context, staffID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM staff_availability WHERE staff_id = $1`, staffID)
	return err
}

func (r *Repository) staffExists(ctx context.Context, staffID string) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM staff WHERE id = $1)
	`, staffID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrStaffNotFound
	}
	return nil
}
