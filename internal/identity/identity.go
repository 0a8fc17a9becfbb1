package identity

import (
	"context"
	"errors"
)

var ErrTokenInvalid = errors.New("access token invalid or expired")

// Customer is the identity a booking is made under. The platform issues
// access tokens out of band; this package only resolves them.
type Customer struct {
	ID         string
	BusinessID string
	Name       string
	Email      string
}

type Resolver interface {
	ResolveToken(ctx context.Context, rawToken string) (Customer, error)
}
