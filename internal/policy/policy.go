package policy

import (
	"context"
	"time"
)

// BookingPolicy is the per-business knob set consulted on every booking
// path: how slots are stepped, how payment interacts with confirmation, and
// which timezone day windows are anchored in.
type BookingPolicy struct {
	SlotStepMinutes       int
	RequireUpfrontPayment bool
	AutoConfirmOnPaid     bool
	Timezone              string
}

// Default keeps auto-confirm off: recording a payment never moves the
// lifecycle axis unless the business opts in.
func Default() BookingPolicy {
	return BookingPolicy{
		SlotStepMinutes: 30,
		Timezone:        "UTC",
	}
}

func (p BookingPolicy) Step() time.Duration {
	if p.SlotStepMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(p.SlotStepMinutes) * time.Minute
}

// Location resolves the business timezone, falling back to UTC on a bad or
// empty name.
func (p BookingPolicy) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type Provider interface {
	PolicyFor(ctx context.Context, businessID string) (BookingPolicy, error)
}

// Static serves one fixed policy for every business. Used in tests and as
// the fallback when no profile row exists.
type Static struct {
	Policy BookingPolicy
}

func (s Static) PolicyFor(ctx context.Context, businessID string) (BookingPolicy, error) {
	return s.Policy, nil
}
