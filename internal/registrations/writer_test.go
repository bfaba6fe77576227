package registrations

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/arena-sports/backend/internal/models"
)

// fakeStore is an in-memory Store. InTx snapshots inserted rows and restores
// them when fn fails, mimicking transaction rollback.
type fakeStore struct {
	sports   map[uuid.UUID]*models.Sport
	events   map[uuid.UUID]*models.Event
	users    map[uuid.UUID]*models.User
	students map[uuid.UUID]*models.Student
	parents  map[uuid.UUID]uuid.UUID
	rows     []models.Registration

	insertErr  error
	insertErrN int // fail the Nth insert call (1-based); 0 = every call
	insertCall int
}

func (f *fakeStore) InTx(_ context.Context, fn func(Store) error) error {
	snapshot := make([]models.Registration, len(f.rows))
	copy(snapshot, f.rows)
	if err := fn(f); err != nil {
		f.rows = snapshot
		return err
	}
	return nil
}

func (f *fakeStore) GetSport(_ context.Context, id uuid.UUID) (*models.Sport, error) {
	return f.sports[id], nil
}

func (f *fakeStore) GetEvent(_ context.Context, id uuid.UUID) (*models.Event, error) {
	return f.events[id], nil
}

func (f *fakeStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	return f.users[id], nil
}

func (f *fakeStore) GetStudentsByIDs(_ context.Context, ids []uuid.UUID) ([]models.Student, error) {
	var out []models.Student
	for _, id := range ids {
		if s, ok := f.students[id]; ok {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) FindActiveRegistrations(_ context.Context, studentIDs []uuid.UUID, sportID uuid.UUID, eventID *uuid.UUID) ([]models.Registration, error) {
	want := make(map[uuid.UUID]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		want[id] = struct{}{}
	}
	var out []models.Registration
	for _, reg := range f.rows {
		if reg.SportID != sportID || reg.Status == models.RegistrationStatusRejected {
			continue
		}
		if (eventID == nil) != (reg.EventID == nil) {
			continue
		}
		if eventID != nil && *reg.EventID != *eventID {
			continue
		}
		if _, ok := want[reg.StudentID]; ok {
			out = append(out, reg)
		}
	}
	return out, nil
}

func (f *fakeStore) GetParentsForStudents(_ context.Context, studentIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	out := make(map[uuid.UUID]uuid.UUID)
	for _, id := range studentIDs {
		if p, ok := f.parents[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeStore) InsertRegistrations(_ context.Context, regs []*models.Registration) error {
	f.insertCall++
	if f.insertErr != nil && (f.insertErrN == 0 || f.insertErrN == f.insertCall) {
		return f.insertErr
	}
	for _, reg := range regs {
		f.rows = append(f.rows, *reg)
	}
	return nil
}

func (f *fakeStore) FindByPaymentIntent(_ context.Context, intentID string) ([]models.Registration, error) {
	var out []models.Registration
	for _, reg := range f.rows {
		if reg.PaymentIntentID == intentID {
			out = append(out, reg)
		}
	}
	return out, nil
}

type captureNotifier struct {
	batches [][]models.Registration
}

func (n *captureNotifier) Dispatch(regs []models.Registration) {
	n.batches = append(n.batches, regs)
}

type fixture struct {
	store    *fakeStore
	notifier *captureNotifier
	writer   *Writer
	parentID uuid.UUID
	sportID  uuid.UUID
	students []uuid.UUID
}

func newFixture(t *testing.T, studentCount int) *fixture {
	t.Helper()
	parentID := uuid.New()
	sportID := uuid.New()
	store := &fakeStore{
		sports:   map[uuid.UUID]*models.Sport{sportID: {ID: sportID, Name: "Athletics", FeeCurrency: "aed"}},
		events:   map[uuid.UUID]*models.Event{},
		users:    map[uuid.UUID]*models.User{parentID: {ID: parentID, Role: models.RoleParent}},
		students: map[uuid.UUID]*models.Student{},
		parents:  map[uuid.UUID]uuid.UUID{},
	}
	var studentIDs []uuid.UUID
	for i := 0; i < studentCount; i++ {
		id := uuid.New()
		store.students[id] = &models.Student{ID: id, FullName: "Student"}
		store.parents[id] = parentID
		studentIDs = append(studentIDs, id)
	}
	notifier := &captureNotifier{}
	return &fixture{
		store:    store,
		notifier: notifier,
		writer:   NewWriter(store, notifier, nil),
		parentID: parentID,
		sportID:  sportID,
		students: studentIDs,
	}
}

func (fx *fixture) input() BulkInput {
	return BulkInput{
		StudentIDs: fx.students,
		SportID:    fx.sportID,
		Payment: PaymentContext{
			IntentID:    "pi_test_1",
			AmountCents: 5500,
			Currency:    "aed",
			Method:      models.PaymentMethodCard,
			Status:      models.PaymentStatusPaid,
		},
	}
}

func TestBulkRegisterHappyPath(t *testing.T) {
	fx := newFixture(t, 3)
	res, err := fx.writer.BulkRegister(context.Background(), fx.parentID, fx.input())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SuccessCount != 3 {
		t.Errorf("success count = %d, want 3", res.SuccessCount)
	}
	if len(fx.store.rows) != 3 {
		t.Errorf("rows = %d, want 3", len(fx.store.rows))
	}
	for _, reg := range res.Registrations {
		if reg.ParentID != fx.parentID {
			t.Errorf("parent = %s, want %s", reg.ParentID, fx.parentID)
		}
		if reg.PaymentIntentID != "pi_test_1" {
			t.Errorf("intent = %q, want pi_test_1", reg.PaymentIntentID)
		}
		if reg.Status != models.RegistrationStatusPending {
			t.Errorf("status = %q, want pending", reg.Status)
		}
	}
	if len(fx.notifier.batches) != 1 || len(fx.notifier.batches[0]) != 3 {
		t.Errorf("notifier batches = %v, want one batch of 3", fx.notifier.batches)
	}
}

func TestBulkRegisterMissingStudentAborts(t *testing.T) {
	fx := newFixture(t, 2)
	in := fx.input()
	in.StudentIDs = append(in.StudentIDs, uuid.New())

	_, err := fx.writer.BulkRegister(context.Background(), fx.parentID, in)
	var missing *MissingStudentsError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want MissingStudentsError", err)
	}
	if len(missing.IDs) != 1 {
		t.Errorf("missing = %v, want 1 id", missing.IDs)
	}
	if len(fx.store.rows) != 0 {
		t.Errorf("rows = %d, want 0 (all-or-nothing)", len(fx.store.rows))
	}
}

func TestBulkRegisterDuplicateAbortsWholeBatch(t *testing.T) {
	fx := newFixture(t, 3)

	// register one student up front
	single := fx.input()
	single.StudentIDs = fx.students[:1]
	if _, err := fx.writer.BulkRegister(context.Background(), fx.parentID, single); err != nil {
		t.Fatalf("seed registration: %v", err)
	}

	_, err := fx.writer.BulkRegister(context.Background(), fx.parentID, fx.input())
	var dup *DuplicateRegistrationError
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v, want DuplicateRegistrationError", err)
	}
	if len(dup.StudentIDs) != 1 || dup.StudentIDs[0] != fx.students[0] {
		t.Errorf("duplicates = %v, want [%s]", dup.StudentIDs, fx.students[0])
	}
	if len(fx.store.rows) != 1 {
		t.Errorf("rows = %d, want 1 (batch aborted)", len(fx.store.rows))
	}
}

func TestBulkRegisterUnclaimedStudentAborts(t *testing.T) {
	fx := newFixture(t, 2)
	delete(fx.store.parents, fx.students[1])

	_, err := fx.writer.BulkRegister(context.Background(), fx.parentID, fx.input())
	var unclaimed *UnclaimedStudentError
	if !errors.As(err, &unclaimed) {
		t.Fatalf("err = %v, want UnclaimedStudentError", err)
	}
	if len(fx.store.rows) != 0 {
		t.Errorf("rows = %d, want 0", len(fx.store.rows))
	}
}

func TestBulkRegisterSportNotFound(t *testing.T) {
	fx := newFixture(t, 1)
	in := fx.input()
	in.SportID = uuid.New()
	if _, err := fx.writer.BulkRegister(context.Background(), fx.parentID, in); !errors.Is(err, ErrSportNotFound) {
		t.Errorf("err = %v, want ErrSportNotFound", err)
	}
}

func TestBulkRegisterInsertFailureRollsBack(t *testing.T) {
	fx := newFixture(t, 2)
	fx.store.insertErr = errors.New("connection reset")

	_, err := fx.writer.BulkRegister(context.Background(), fx.parentID, fx.input())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(fx.store.rows) != 0 {
		t.Errorf("rows = %d, want 0 after rollback", len(fx.store.rows))
	}
	if len(fx.notifier.batches) != 0 {
		t.Errorf("notifier called after failed bulk")
	}
}

func TestBulkRegisterTeamSportSharesGroupID(t *testing.T) {
	fx := newFixture(t, 3)
	fx.store.sports[fx.sportID].IsTeamSport = true
	fx.store.sports[fx.sportID].MinRosterSize = 3

	res, err := fx.writer.BulkRegister(context.Background(), fx.parentID, fx.input())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	group := res.Registrations[0].GroupRegistrationID
	if group == nil {
		t.Fatal("group registration id not set for team sport")
	}
	for _, reg := range res.Registrations {
		if !reg.IsGroupRegistration || reg.GroupRegistrationID == nil || *reg.GroupRegistrationID != *group {
			t.Errorf("registration %s does not share group id", reg.ID)
		}
	}
}

func TestRegisterOneFallbackIndependentOutcomes(t *testing.T) {
	fx := newFixture(t, 3)
	// one student already registered; the other two should still succeed
	single := fx.input()
	single.StudentIDs = fx.students[:1]
	if _, err := fx.writer.BulkRegister(context.Background(), fx.parentID, single); err != nil {
		t.Fatalf("seed registration: %v", err)
	}

	var ok, failed int
	for _, studentID := range fx.students {
		_, err := fx.writer.RegisterOne(context.Background(), fx.parentID, studentID, fx.input())
		if err != nil {
			failed++
		} else {
			ok++
		}
	}
	if ok != 2 || failed != 1 {
		t.Errorf("ok=%d failed=%d, want 2/1", ok, failed)
	}
	if len(fx.store.rows) != 3 {
		t.Errorf("rows = %d, want 3", len(fx.store.rows))
	}
}

func TestRegisterOneUnclaimedStudent(t *testing.T) {
	fx := newFixture(t, 1)
	delete(fx.store.parents, fx.students[0])
	_, err := fx.writer.RegisterOne(context.Background(), fx.parentID, fx.students[0], fx.input())
	var unclaimed *UnclaimedStudentError
	if !errors.As(err, &unclaimed) {
		t.Errorf("err = %v, want UnclaimedStudentError", err)
	}
}
