package students

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arena-sports/backend/internal/models"
)

const studentColumns = `id, full_name, date_of_birth, COALESCE(gender,''), COALESCE(school_name,''), COALESCE(country,''), created_at, updated_at`

// Repository handles student persistence and parent claims.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a students repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a student.
func (r *Repository) Create(ctx context.Context, s *models.Student) error {
	const q = `INSERT INTO students (id, full_name, date_of_birth, gender, school_name, country)
		VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), NULLIF($6,''))
		RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, q, s.ID, s.FullName, s.DateOfBirth, s.Gender, s.SchoolName, s.Country).
		Scan(&s.CreatedAt, &s.UpdatedAt)
}

// GetByID returns a student, or nil if missing.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	var s models.Student
	err := r.pool.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id).
		Scan(&s.ID, &s.FullName, &s.DateOfBirth, &s.Gender, &s.SchoolName, &s.Country, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByParent returns the students claimed by a parent or school account.
func (r *Repository) ListByParent(ctx context.Context, parentID uuid.UUID) ([]models.Student, error) {
	const q = `SELECT ` + studentColumns + ` FROM students st
		JOIN parent_students ps ON ps.student_id = st.id
		WHERE ps.parent_id = $1
		ORDER BY st.full_name`
	rows, err := r.pool.Query(ctx, q, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStudents(rows)
}

// ListAll returns every student; admin only.
func (r *Repository) ListAll(ctx context.Context) ([]models.Student, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+studentColumns+` FROM students ORDER BY full_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStudents(rows)
}

// Claimant returns the user that claimed a student, or uuid.Nil when the
// student is unclaimed. With multiple links the earliest claim wins.
func (r *Repository) Claimant(ctx context.Context, studentID uuid.UUID) (uuid.UUID, error) {
	const q = `SELECT parent_id FROM parent_students WHERE student_id = $1 ORDER BY created_at LIMIT 1`
	var parentID uuid.UUID
	err := r.pool.QueryRow(ctx, q, studentID).Scan(&parentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, nil
	}
	return parentID, err
}

// Claim links a student to a claiming account. Idempotent for repeat claims
// by the same account.
func (r *Repository) Claim(ctx context.Context, parentID, studentID uuid.UUID) error {
	const q = `INSERT INTO parent_students (parent_id, student_id) VALUES ($1, $2)
		ON CONFLICT (parent_id, student_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, parentID, studentID)
	return err
}

func scanStudents(rows pgx.Rows) ([]models.Student, error) {
	var list []models.Student
	for rows.Next() {
		var s models.Student
		if err := rows.Scan(&s.ID, &s.FullName, &s.DateOfBirth, &s.Gender, &s.SchoolName, &s.Country, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
