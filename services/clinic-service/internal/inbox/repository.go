package inbox

import (
	"context"

	"github.com/md-rashed-zaman/clinicdesk/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record marks eventID as handled by consumer. It returns false when the pair was
// already recorded, i.e. the event is a redelivery.
func (r *Repository) Record(ctx context.Context, consumer, eventID, eventType string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO inbox_events (consumer, event_id, event_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (consumer, event_id) DO NOTHING
	`, consumer, eventID, eventType)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Forget drops a record so a failed event can be retried on redelivery.
func (r *Repository) Forget(ctx context.Context, consumer, eventID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM inbox_events WHERE consumer = $1 AND event_id = $2`, consumer, eventID)
	return err
}
