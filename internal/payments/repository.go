package payments

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WebhookRepository persists verified provider webhook deliveries.
type WebhookRepository struct {
	pool *pgxpool.Pool
}

// NewWebhookRepository creates a webhook event repository.
func NewWebhookRepository(pool *pgxpool.Pool) *WebhookRepository {
	return &WebhookRepository{pool: pool}
}

// Insert records one webhook event. Redelivered events (same provider event
// ID) are ignored.
func (r *WebhookRepository) Insert(ctx context.Context, providerEventID, eventType string, payload []byte) error {
	const q = `INSERT INTO payment_webhook_events (provider, provider_event_id, event_type, payload)
		VALUES ('stripe', $1, $2, $3)
		ON CONFLICT (provider_event_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, providerEventID, eventType, payload)
	return err
}
