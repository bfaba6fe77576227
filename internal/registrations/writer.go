package registrations

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arena-sports/backend/internal/models"
)

// Store is the data access the writer needs. Repository implements it over
// pgx; tests implement it with in-memory fakes.
type Store interface {
	// InTx runs fn against a transaction-scoped Store. A non-nil error from
	// fn rolls the transaction back.
	InTx(ctx context.Context, fn func(Store) error) error

	GetSport(ctx context.Context, id uuid.UUID) (*models.Sport, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetStudentsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Student, error)
	// FindActiveRegistrations returns non-rejected registrations among the
	// given students for the sport+event.
	FindActiveRegistrations(ctx context.Context, studentIDs []uuid.UUID, sportID uuid.UUID, eventID *uuid.UUID) ([]models.Registration, error)
	// GetParentsForStudents resolves each student's claiming parent.
	GetParentsForStudents(ctx context.Context, studentIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
	InsertRegistrations(ctx context.Context, regs []*models.Registration) error
	FindByPaymentIntent(ctx context.Context, intentID string) ([]models.Registration, error)
}

// Notifier schedules registration notifications. Dispatch must not block and
// must never surface failures to the caller.
type Notifier interface {
	Dispatch(regs []models.Registration)
}

// PaymentContext carries the reconciled payment details onto registrations.
type PaymentContext struct {
	IntentID    string
	AmountCents int64
	Currency    string
	Method      string
	Status      string // paid | free | pending
}

// BulkInput is one registration batch.
type BulkInput struct {
	StudentIDs []uuid.UUID
	SportID    uuid.UUID
	EventID    *uuid.UUID
	Payment    PaymentContext
}

// BulkResult is the outcome of a committed bulk registration.
type BulkResult struct {
	Registrations []models.Registration `json:"registrations"`
	SuccessCount  int                   `json:"success_count"`
}

// Writer creates registrations. BulkRegister is strict and transactional;
// RegisterOne is the lenient per-student path used only after a completed
// payment, where failing a whole paid batch over one bad student is worse
// than partial success.
type Writer struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger
}

// NewWriter creates a registration writer. notifier may be nil.
func NewWriter(store Store, notifier Notifier, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: store, notifier: notifier, logger: logger}
}

// BulkRegister validates and inserts the whole batch in one transaction.
// Any validation failure aborts the batch with no rows written.
func (w *Writer) BulkRegister(ctx context.Context, actingUserID uuid.UUID, in BulkInput) (*BulkResult, error) {
	if len(in.StudentIDs) == 0 {
		return nil, ErrNoStudents
	}

	var created []models.Registration
	err := w.store.InTx(ctx, func(tx Store) error {
		sport, actingUser, event, err := w.loadContext(ctx, tx, actingUserID, in)
		if err != nil {
			return err
		}

		students, err := tx.GetStudentsByIDs(ctx, in.StudentIDs)
		if err != nil {
			return fmt.Errorf("load students: %w", err)
		}
		if missing := missingIDs(in.StudentIDs, students); len(missing) > 0 {
			return &MissingStudentsError{IDs: missing}
		}

		existing, err := tx.FindActiveRegistrations(ctx, in.StudentIDs, in.SportID, in.EventID)
		if err != nil {
			return fmt.Errorf("duplicate check: %w", err)
		}
		if len(existing) > 0 {
			dup := make([]uuid.UUID, 0, len(existing))
			for _, reg := range existing {
				dup = append(dup, reg.StudentID)
			}
			return &DuplicateRegistrationError{StudentIDs: dup}
		}

		parents, err := tx.GetParentsForStudents(ctx, in.StudentIDs)
		if err != nil {
			return fmt.Errorf("resolve parents: %w", err)
		}

		regs := make([]*models.Registration, 0, len(students))
		var groupID *uuid.UUID
		if sport.IsTeamSport {
			id := uuid.New()
			groupID = &id
		}
		for _, student := range students {
			parentID, ok := parents[student.ID]
			if !ok {
				return &UnclaimedStudentError{StudentID: student.ID}
			}
			regs = append(regs, w.buildRegistration(student.ID, parentID, actingUser, sport, event, in, groupID))
		}

		if err := tx.InsertRegistrations(ctx, regs); err != nil {
			return err
		}
		created = make([]models.Registration, len(regs))
		for i, reg := range regs {
			created[i] = *reg
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("bulk registration committed",
		zap.Int("count", len(created)),
		zap.String("sport_id", in.SportID.String()),
		zap.String("payment_intent_id", in.Payment.IntentID),
	)
	if w.notifier != nil {
		w.notifier.Dispatch(created)
	}
	return &BulkResult{Registrations: created, SuccessCount: len(created)}, nil
}

// RegisterOne registers a single student, repeating the bulk validations for
// just that student. It is intentionally not transactional across students.
// Callers decide whether and when to notify.
func (w *Writer) RegisterOne(ctx context.Context, actingUserID, studentID uuid.UUID, in BulkInput) (*models.Registration, error) {
	sport, actingUser, event, err := w.loadContext(ctx, w.store, actingUserID, in)
	if err != nil {
		return nil, err
	}

	students, err := w.store.GetStudentsByIDs(ctx, []uuid.UUID{studentID})
	if err != nil {
		return nil, fmt.Errorf("load student: %w", err)
	}
	if len(students) == 0 {
		return nil, &MissingStudentsError{IDs: []uuid.UUID{studentID}}
	}

	existing, err := w.store.FindActiveRegistrations(ctx, []uuid.UUID{studentID}, in.SportID, in.EventID)
	if err != nil {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	if len(existing) > 0 {
		return nil, &DuplicateRegistrationError{StudentIDs: []uuid.UUID{studentID}}
	}

	parents, err := w.store.GetParentsForStudents(ctx, []uuid.UUID{studentID})
	if err != nil {
		return nil, fmt.Errorf("resolve parent: %w", err)
	}
	parentID, ok := parents[studentID]
	if !ok {
		return nil, &UnclaimedStudentError{StudentID: studentID}
	}

	reg := w.buildRegistration(studentID, parentID, actingUser, sport, event, in, nil)
	if err := w.store.InsertRegistrations(ctx, []*models.Registration{reg}); err != nil {
		return nil, err
	}
	return reg, nil
}

// FindByPaymentIntent returns registrations already created for an intent,
// used by the reconciliation endpoint for idempotency.
func (w *Writer) FindByPaymentIntent(ctx context.Context, intentID string) ([]models.Registration, error) {
	return w.store.FindByPaymentIntent(ctx, intentID)
}

// Notify schedules notifications for registrations created outside the bulk
// path (the per-student fallback).
func (w *Writer) Notify(regs []models.Registration) {
	if w.notifier != nil && len(regs) > 0 {
		w.notifier.Dispatch(regs)
	}
}

func (w *Writer) loadContext(ctx context.Context, s Store, actingUserID uuid.UUID, in BulkInput) (*models.Sport, *models.User, *models.Event, error) {
	sport, err := s.GetSport(ctx, in.SportID)
	if err != nil || sport == nil {
		return nil, nil, nil, ErrSportNotFound
	}
	actingUser, err := s.GetUser(ctx, actingUserID)
	if err != nil || actingUser == nil {
		return nil, nil, nil, ErrUserNotFound
	}
	var event *models.Event
	if in.EventID != nil {
		event, err = s.GetEvent(ctx, *in.EventID)
		if err != nil || event == nil {
			return nil, nil, nil, ErrEventNotFound
		}
	}
	return sport, actingUser, event, nil
}

func (w *Writer) buildRegistration(studentID, parentID uuid.UUID, actingUser *models.User, sport *models.Sport, event *models.Event, in BulkInput, groupID *uuid.UUID) *models.Registration {
	var eventID *uuid.UUID
	if event != nil {
		id := event.ID
		eventID = &id
	}
	var schoolID *uuid.UUID
	if actingUser.Role == models.RoleSchool {
		id := actingUser.ID
		schoolID = &id
	}
	paymentStatus := in.Payment.Status
	if paymentStatus == "" {
		paymentStatus = models.PaymentStatusPending
	}
	return &models.Registration{
		ID:                  uuid.New(),
		StudentID:           studentID,
		SportID:             sport.ID,
		EventID:             eventID,
		ParentID:            parentID,
		SchoolID:            schoolID,
		Status:              models.RegistrationStatusPending,
		PaymentStatus:       paymentStatus,
		PaymentMethod:       in.Payment.Method,
		PaymentIntentID:     in.Payment.IntentID,
		PaymentAmountCents:  in.Payment.AmountCents,
		PaymentCurrency:     in.Payment.Currency,
		IsGroupRegistration: groupID != nil,
		GroupRegistrationID: groupID,
		IsSubstitute:        false,
	}
}

func missingIDs(requested []uuid.UUID, found []models.Student) []uuid.UUID {
	have := make(map[uuid.UUID]struct{}, len(found))
	for _, s := range found {
		have[s.ID] = struct{}{}
	}
	var missing []uuid.UUID
	for _, id := range requested {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
