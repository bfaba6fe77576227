package notifications

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Recipient identifies where a consolidated email goes.
type Recipient struct {
	UserID   uuid.UUID
	Email    string
	FullName string
}

// Repository reads the enrichment data the dispatcher needs to turn bare
// registration rows into a readable email.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notifications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// StudentNames resolves student IDs to full names.
func (r *Repository) StudentNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	const q = `SELECT id, full_name FROM students WHERE id = ANY($1::uuid[])`
	rows, err := r.pool.Query(ctx, q, idStrings(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]string, len(ids))
	for rows.Next() {
		var id uuid.UUID
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}

// Recipients resolves user IDs to email recipients.
func (r *Repository) Recipients(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Recipient, error) {
	const q = `SELECT id, email, full_name FROM users WHERE id = ANY($1::uuid[])`
	rows, err := r.pool.Query(ctx, q, idStrings(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]Recipient, len(ids))
	for rows.Next() {
		var rec Recipient
		if err := rows.Scan(&rec.UserID, &rec.Email, &rec.FullName); err != nil {
			return nil, err
		}
		out[rec.UserID] = rec
	}
	return out, rows.Err()
}

// SportName returns the sport's display name, or "" if the row is gone.
func (r *Repository) SportName(ctx context.Context, id uuid.UUID) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT name FROM sports WHERE id = $1`, id).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return name, err
}

// EventName returns the event's display name, or "" when eventID is nil or
// the row is gone.
func (r *Repository) EventName(ctx context.Context, eventID *uuid.UUID) (string, error) {
	if eventID == nil {
		return "", nil
	}
	var name string
	err := r.pool.QueryRow(ctx, `SELECT name FROM events WHERE id = $1`, *eventID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return name, err
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
