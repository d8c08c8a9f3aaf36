package inbox

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

// Repository records consumed event ids so that redelivered messages are
// handled once.
type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

// Record returns false when eventID was already seen.
func (r *Repository) Record(ctx context.Context, eventID string, eventType string) (bool, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}
	if storage.IsUniqueViolation(err) {
		return false, nil
	}
	return false, err
}

// Forget removes eventID so that the event is handled again when it is
// retried or redelivered.
func (r *Repository) Forget(ctx context.Context, eventID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM inbox_events WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("forget inbox event: %w", err)
	}
	return nil
}
