package payments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProviderEventsRepository keeps one row per provider event so webhook
// replays are detected across restarts.
type ProviderEventsRepository struct {
	db DB
}

func NewProviderEventsRepository(db DB) *ProviderEventsRepository {
	return &ProviderEventsRepository{db: db}
}

func (r *ProviderEventsRepository) Seen(ctx context.Context, provider, eventID string) (bool, error) {
	var seen bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM provider_events WHERE provider = $1 AND provider_event_id = $2
		)
	`, provider, eventID).Scan(&seen)
	return seen, err
}

func (r *ProviderEventsRepository) Record(ctx context.Context, provider, eventID, eventType string, payload []byte) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO provider_events (provider, provider_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
	`, provider, eventID, eventType, payload)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return nil
	}
	return err
}
