package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arena-sports/backend/internal/models"
)

// Repository handles check-in token persistence and attendance marking.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an attendance repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateToken inserts a check-in token.
func (r *Repository) CreateToken(ctx context.Context, t *models.CheckInToken) error {
	const q = `INSERT INTO check_in_tokens (id, registration_id, token, expires_at)
		VALUES ($1, $2, $3, $4) RETURNING created_at`
	return r.pool.QueryRow(ctx, q, t.ID, t.RegistrationID, t.Token, t.ExpiresAt).Scan(&t.CreatedAt)
}

// GetToken returns a token by its string form, or nil if missing.
func (r *Repository) GetToken(ctx context.Context, tokenStr string) (*models.CheckInToken, error) {
	const q = `SELECT id, registration_id, token, expires_at, used_at, created_at
		FROM check_in_tokens WHERE token = $1`
	var t models.CheckInToken
	err := r.pool.QueryRow(ctx, q, tokenStr).Scan(&t.ID, &t.RegistrationID, &t.Token, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkTokenUsed sets used_at for a token. Returns false if it was already used.
func (r *Repository) MarkTokenUsed(ctx context.Context, tokenID uuid.UUID) (bool, error) {
	const q = `UPDATE check_in_tokens SET used_at = NOW() WHERE id = $1 AND used_at IS NULL`
	tag, err := r.pool.Exec(ctx, q, tokenID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkAttended sets attended_at for a registration.
func (r *Repository) MarkAttended(ctx context.Context, registrationID uuid.UUID) error {
	const q = `UPDATE registrations SET attended_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND attended_at IS NULL`
	_, err := r.pool.Exec(ctx, q, registrationID)
	return err
}

// CheckInDetail is the venue-facing view behind a token.
type CheckInDetail struct {
	RegistrationID uuid.UUID  `json:"registration_id"`
	StudentName    string     `json:"student_name"`
	SportName      string     `json:"sport_name"`
	EventName      string     `json:"event_name,omitempty"`
	EventStartsAt  *time.Time `json:"event_starts_at,omitempty"`
	Status         string     `json:"status"`
	PaymentStatus  string     `json:"payment_status"`
	AttendedAt     *time.Time `json:"attended_at,omitempty"`
}

// GetDetail returns the check-in view for a registration, or nil if missing.
func (r *Repository) GetDetail(ctx context.Context, registrationID uuid.UUID) (*CheckInDetail, error) {
	const q = `SELECT reg.id, st.full_name, sp.name, COALESCE(ev.name,''), ev.starts_at,
			reg.status, reg.payment_status, reg.attended_at
		FROM registrations reg
		JOIN students st ON st.id = reg.student_id
		JOIN sports sp ON sp.id = reg.sport_id
		LEFT JOIN events ev ON ev.id = reg.event_id
		WHERE reg.id = $1`
	var d CheckInDetail
	err := r.pool.QueryRow(ctx, q, registrationID).Scan(&d.RegistrationID, &d.StudentName, &d.SportName,
		&d.EventName, &d.EventStartsAt, &d.Status, &d.PaymentStatus, &d.AttendedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}
