package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// TokenRepository stores customer access tokens hashed; the raw token is
// only ever seen at issue time and in the Authorization header.
type TokenRepository struct {
	db DB
}

func NewTokenRepository(db DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Issue(ctx context.Context, c Customer, ttl time.Duration) (string, error) {
	raw, err := newRawToken()
	if err != nil {
		return "", err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO customer_access_tokens (token_hash, customer_id, business_id, customer_name, customer_email, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, hashToken(raw), c.ID, c.BusinessID, c.Name, c.Email, time.Now().Add(ttl))
	if err != nil {
		return "", err
	}
	return raw, nil
}

func (r *TokenRepository) ResolveToken(ctx context.Context, rawToken string) (Customer, error) {
	if rawToken == "" {
		return Customer{}, ErrTokenInvalid
	}
	var c Customer
	err := r.db.QueryRow(ctx, `
		SELECT customer_id::text, business_id::text, customer_name, customer_email
		FROM customer_access_tokens
		WHERE token_hash = $1 AND expires_at > now()
	`, hashToken(rawToken)).Scan(&c.ID, &c.BusinessID, &c.Name, &c.Email)
	if err == pgx.ErrNoRows {
		return Customer{}, ErrTokenInvalid
	}
	if err != nil {
		return Customer{}, err
	}
	return c, nil
}

func (r *TokenRepository) Revoke(ctx context.Context, rawToken string) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM customer_access_tokens WHERE token_hash = $1
	`, hashToken(rawToken))
	return err
}

func newRawToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
