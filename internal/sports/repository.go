package sports

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arena-sports/backend/internal/models"
)

const sportColumns = `id, name, COALESCE(description,''), per_student_fee_cents, fee_currency, is_team_sport, min_roster_size, created_at, updated_at`

// Repository handles sport persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sports repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a sport.
func (r *Repository) Create(ctx context.Context, s *models.Sport) error {
	const q = `INSERT INTO sports (id, name, description, per_student_fee_cents, fee_currency, is_team_sport, min_roster_size)
		VALUES ($1, $2, NULLIF($3,''), $4, $5, $6, $7)
		RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, q, s.ID, s.Name, s.Description, s.PerStudentFeeCents, s.FeeCurrency, s.IsTeamSport, s.MinRosterSize).
		Scan(&s.CreatedAt, &s.UpdatedAt)
}

// GetSport returns a sport by ID, or nil if missing. Also serves the pricing
// resolver's sport lookups.
func (r *Repository) GetSport(ctx context.Context, id uuid.UUID) (*models.Sport, error) {
	var s models.Sport
	err := r.pool.QueryRow(ctx, `SELECT `+sportColumns+` FROM sports WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Description, &s.PerStudentFeeCents, &s.FeeCurrency, &s.IsTeamSport, &s.MinRosterSize, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns all sports ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Sport, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sportColumns+` FROM sports ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Sport
	for rows.Next() {
		var s models.Sport
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.PerStudentFeeCents, &s.FeeCurrency, &s.IsTeamSport, &s.MinRosterSize, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Update applies mutable sport fields.
func (r *Repository) Update(ctx context.Context, s *models.Sport) error {
	const q = `UPDATE sports SET name = $2, description = NULLIF($3,''), per_student_fee_cents = $4,
		fee_currency = $5, is_team_sport = $6, min_roster_size = $7, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, s.ID, s.Name, s.Description, s.PerStudentFeeCents, s.FeeCurrency, s.IsTeamSport, s.MinRosterSize).
		Scan(&s.UpdatedAt)
}
