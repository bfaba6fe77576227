package registrations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arena-sports/backend/internal/models"
)

const registrationColumns = `id, student_id, sport_id, event_id, parent_id, school_id,
	status, payment_status, COALESCE(payment_method,''), COALESCE(payment_intent_id,''),
	payment_amount_cents, COALESCE(payment_currency,''),
	is_group_registration, group_registration_id, is_substitute, attended_at, created_at, updated_at`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the repository can
// run inside or outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Repository implements Store over PostgreSQL.
type Repository struct {
	db   querier
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, pool: pool}
}

// InTx runs fn against a transaction-scoped repository. Nested calls reuse
// the current transaction.
func (r *Repository) InTx(ctx context.Context, fn func(Store) error) error {
	if r.pool == nil {
		return fn(r)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Repository{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetSport returns a sport by ID, or nil if missing.
func (r *Repository) GetSport(ctx context.Context, id uuid.UUID) (*models.Sport, error) {
	const q = `SELECT id, name, COALESCE(description,''), per_student_fee_cents, fee_currency, is_team_sport, min_roster_size, created_at, updated_at
		FROM sports WHERE id = $1`
	var s models.Sport
	err := r.db.QueryRow(ctx, q, id).Scan(&s.ID, &s.Name, &s.Description, &s.PerStudentFeeCents, &s.FeeCurrency, &s.IsTeamSport, &s.MinRosterSize, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetEvent returns an event by ID, or nil if missing.
func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	const q = `SELECT id, name, COALESCE(location,''), COALESCE(country,''), starts_at, ends_at, created_at, updated_at
		FROM events WHERE id = $1`
	var e models.Event
	err := r.db.QueryRow(ctx, q, id).Scan(&e.ID, &e.Name, &e.Location, &e.Country, &e.StartsAt, &e.EndsAt, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetUser returns a user by ID, or nil if missing.
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT id, email, full_name, role, created_at, updated_at FROM users WHERE id = $1`
	var u models.User
	err := r.db.QueryRow(ctx, q, id).Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetStudentsByIDs returns all students matching the given IDs in one query.
func (r *Repository) GetStudentsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Student, error) {
	const q = `SELECT id, full_name, date_of_birth, COALESCE(gender,''), COALESCE(school_name,''), COALESCE(country,''), created_at, updated_at
		FROM students WHERE id = ANY($1::uuid[])`
	rows, err := r.db.Query(ctx, q, idStrings(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
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

// FindActiveRegistrations returns non-rejected registrations among the given
// students for the sport (and event, when given) in one batch query.
func (r *Repository) FindActiveRegistrations(ctx context.Context, studentIDs []uuid.UUID, sportID uuid.UUID, eventID *uuid.UUID) ([]models.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations
		WHERE student_id = ANY($1::uuid[]) AND sport_id = $2 AND status <> $3`
	args := []any{idStrings(studentIDs), sportID, models.RegistrationStatusRejected}
	if eventID != nil {
		q += ` AND event_id = $4`
		args = append(args, *eventID)
	} else {
		q += ` AND event_id IS NULL`
	}
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRegistrations(rows)
}

// GetParentsForStudents resolves each student's claiming parent via the link
// table. Students without a link are absent from the result.
func (r *Repository) GetParentsForStudents(ctx context.Context, studentIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	const q = `SELECT student_id, parent_id FROM parent_students WHERE student_id = ANY($1::uuid[])`
	rows, err := r.db.Query(ctx, q, idStrings(studentIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]uuid.UUID, len(studentIDs))
	for rows.Next() {
		var studentID, parentID uuid.UUID
		if err := rows.Scan(&studentID, &parentID); err != nil {
			return nil, err
		}
		// first claimant wins when multiple links exist
		if _, ok := out[studentID]; !ok {
			out[studentID] = parentID
		}
	}
	return out, rows.Err()
}

// InsertRegistrations inserts all rows in one batch. A unique-index violation
// on the active-registration index maps to DuplicateRegistrationError.
func (r *Repository) InsertRegistrations(ctx context.Context, regs []*models.Registration) error {
	const q = `INSERT INTO registrations
		(id, student_id, sport_id, event_id, parent_id, school_id, status, payment_status,
		 payment_method, payment_intent_id, payment_amount_cents, payment_currency,
		 is_group_registration, group_registration_id, is_substitute)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9,''), NULLIF($10,''), $11, NULLIF($12,''), $13, $14, $15)
		RETURNING created_at, updated_at`
	batch := &pgx.Batch{}
	for _, reg := range regs {
		batch.Queue(q, reg.ID, reg.StudentID, reg.SportID, reg.EventID, reg.ParentID, reg.SchoolID,
			reg.Status, reg.PaymentStatus, reg.PaymentMethod, reg.PaymentIntentID,
			reg.PaymentAmountCents, reg.PaymentCurrency,
			reg.IsGroupRegistration, reg.GroupRegistrationID, reg.IsSubstitute)
	}
	results := r.db.SendBatch(ctx, batch)
	defer results.Close()
	for _, reg := range regs {
		if err := results.QueryRow().Scan(&reg.CreatedAt, &reg.UpdatedAt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return &DuplicateRegistrationError{StudentIDs: []uuid.UUID{reg.StudentID}}
			}
			return fmt.Errorf("insert registration: %w", err)
		}
	}
	return nil
}

// FindByPaymentIntent returns registrations created for a payment intent.
func (r *Repository) FindByPaymentIntent(ctx context.Context, intentID string) ([]models.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations WHERE payment_intent_id = $1`
	rows, err := r.db.Query(ctx, q, intentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRegistrations(rows)
}

// ListFilter narrows List results.
type ListFilter struct {
	SportID  *uuid.UUID
	EventID  *uuid.UUID
	ParentID *uuid.UUID
	Status   string
}

// List returns registrations for the admin dashboard, newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations WHERE 1=1`
	var args []any
	if f.SportID != nil {
		args = append(args, *f.SportID)
		q += fmt.Sprintf(" AND sport_id = $%d", len(args))
	}
	if f.EventID != nil {
		args = append(args, *f.EventID)
		q += fmt.Sprintf(" AND event_id = $%d", len(args))
	}
	if f.ParentID != nil {
		args = append(args, *f.ParentID)
		q += fmt.Sprintf(" AND parent_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	q += " ORDER BY created_at DESC"
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRegistrations(rows)
}

// RosterRow is one line of a sport roster export.
type RosterRow struct {
	RegistrationID uuid.UUID
	StudentName    string
	ParentEmail    string
	EventName      string
	Status         string
	PaymentStatus  string
}

// Roster returns the export rows for a sport, joined with student and parent.
func (r *Repository) Roster(ctx context.Context, sportID uuid.UUID) ([]RosterRow, error) {
	const q = `SELECT reg.id, st.full_name, u.email, COALESCE(ev.name,''), reg.status, reg.payment_status
		FROM registrations reg
		JOIN students st ON st.id = reg.student_id
		JOIN users u ON u.id = reg.parent_id
		LEFT JOIN events ev ON ev.id = reg.event_id
		WHERE reg.sport_id = $1
		ORDER BY st.full_name`
	rows, err := r.db.Query(ctx, q, sportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []RosterRow
	for rows.Next() {
		var row RosterRow
		if err := rows.Scan(&row.RegistrationID, &row.StudentName, &row.ParentEmail, &row.EventName, &row.Status, &row.PaymentStatus); err != nil {
			return nil, err
		}
		list = append(list, row)
	}
	return list, rows.Err()
}

func scanRegistrations(rows pgx.Rows) ([]models.Registration, error) {
	var list []models.Registration
	for rows.Next() {
		var reg models.Registration
		if err := rows.Scan(&reg.ID, &reg.StudentID, &reg.SportID, &reg.EventID, &reg.ParentID, &reg.SchoolID,
			&reg.Status, &reg.PaymentStatus, &reg.PaymentMethod, &reg.PaymentIntentID,
			&reg.PaymentAmountCents, &reg.PaymentCurrency,
			&reg.IsGroupRegistration, &reg.GroupRegistrationID, &reg.IsSubstitute, &reg.AttendedAt, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, reg)
	}
	return list, rows.Err()
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
