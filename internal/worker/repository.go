package worker

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arena-sports/backend/internal/models"
	"github.com/arena-sports/backend/pkg/queue"
)

// EmailLogRepository writes the delivery audit trail. One log row per
// registration covered by a sent (or failed) email.
type EmailLogRepository struct {
	pool *pgxpool.Pool
}

// NewEmailLogRepository creates an email log repository.
func NewEmailLogRepository(pool *pgxpool.Pool) *EmailLogRepository {
	return &EmailLogRepository{pool: pool}
}

// Record inserts log rows for one processed email job. status is one of the
// models.EmailLogStatus values; errMsg is empty on success.
func (r *EmailLogRepository) Record(ctx context.Context, payload queue.EmailPayload, status, errMsg string) error {
	const q = `INSERT INTO email_logs
		(registration_id, email_type, recipient_email, subject, status, sent_at, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7,''))`

	var sentAt *time.Time
	if status == models.EmailLogStatusSent {
		now := time.Now()
		sentAt = &now
	}

	if len(payload.RegistrationIDs) == 0 {
		_, err := r.pool.Exec(ctx, q, nil, payload.EmailType, payload.RecipientEmail, payload.Subject, status, sentAt, errMsg)
		return err
	}

	batch := &pgx.Batch{}
	for _, regID := range payload.RegistrationIDs {
		batch.Queue(q, regID, payload.EmailType, payload.RecipientEmail, payload.Subject, status, sentAt, errMsg)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range payload.RegistrationIDs {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
