package policy

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGProvider reads the booking policy off the business profile row. A
// business without a profile gets the defaults.
type PGProvider struct {
	db DB
}

func NewPGProvider(db DB) *PGProvider {
	return &PGProvider{db: db}
}

func (p *PGProvider) PolicyFor(ctx context.Context, businessID string) (BookingPolicy, error) {
	pol := Default()
	err := p.db.QueryRow(ctx, `
		SELECT slot_step_minutes, require_upfront_payment, auto_confirm_on_paid, timezone
		FROM business_profiles
		WHERE business_id = $1
	`, businessID).Scan(&pol.SlotStepMinutes, &pol.RequireUpfrontPayment, &pol.AutoConfirmOnPaid, &pol.Timezone)
	if err == pgx.ErrNoRows {
		return Default(), nil
	}
	if err != nil {
		return BookingPolicy{}, err
	}
	if pol.SlotStepMinutes <= 0 {
		pol.SlotStepMinutes = Default().SlotStepMinutes
	}
	return pol, nil
}
