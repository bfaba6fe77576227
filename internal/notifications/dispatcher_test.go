package notifications

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/arena-sports/backend/internal/models"
	"github.com/arena-sports/backend/pkg/queue"
)

type fakeLoader struct {
	students   map[uuid.UUID]string
	recipients map[uuid.UUID]Recipient
	sportName  string
	eventName  string
}

func (f *fakeLoader) StudentNames(_ context.Context, _ []uuid.UUID) (map[uuid.UUID]string, error) {
	return f.students, nil
}

func (f *fakeLoader) Recipients(_ context.Context, _ []uuid.UUID) (map[uuid.UUID]Recipient, error) {
	return f.recipients, nil
}

func (f *fakeLoader) SportName(_ context.Context, _ uuid.UUID) (string, error) {
	return f.sportName, nil
}

func (f *fakeLoader) EventName(_ context.Context, _ *uuid.UUID) (string, error) {
	return f.eventName, nil
}

type fakeEnqueuer struct {
	payloads []queue.EmailPayload
	failFor  string
}

func (f *fakeEnqueuer) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	if f.failFor != "" && p.RecipientEmail == f.failFor {
		return errors.New("redis down")
	}
	f.payloads = append(f.payloads, p)
	return nil
}

func reg(studentID, parentID, sportID uuid.UUID, amountCents int64) models.Registration {
	return models.Registration{
		ID:                 uuid.New(),
		StudentID:          studentID,
		SportID:            sportID,
		ParentID:           parentID,
		Status:             models.RegistrationStatusPending,
		PaymentAmountCents: amountCents,
		PaymentCurrency:    "aed",
	}
}

func TestDeliverGroupsPerParent(t *testing.T) {
	sportID := uuid.New()
	parentA, parentB := uuid.New(), uuid.New()
	s1, s2, s3 := uuid.New(), uuid.New(), uuid.New()

	loader := &fakeLoader{
		students: map[uuid.UUID]string{s1: "Aisha", s2: "Omar", s3: "Lin"},
		recipients: map[uuid.UUID]Recipient{
			parentA: {UserID: parentA, Email: "a@example.com", FullName: "Parent A"},
			parentB: {UserID: parentB, Email: "b@example.com", FullName: "Parent B"},
		},
		sportName: "Swimming",
		eventName: "Spring Gala",
	}
	enq := &fakeEnqueuer{}
	d := NewDispatcher(loader, enq, nil)

	regs := []models.Registration{
		reg(s1, parentA, sportID, 5500),
		reg(s2, parentA, sportID, 5500),
		reg(s3, parentB, sportID, 5500),
	}
	if err := d.deliver(context.Background(), regs); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(enq.payloads) != 2 {
		t.Fatalf("payloads = %d, want 2 (one per parent)", len(enq.payloads))
	}
	for _, p := range enq.payloads {
		if p.EmailType != models.EmailTypeRegistrationConfirmation {
			t.Errorf("email type = %q", p.EmailType)
		}
		if !strings.Contains(p.Subject, "Swimming") || !strings.Contains(p.Subject, "Spring Gala") {
			t.Errorf("subject = %q", p.Subject)
		}
		switch p.RecipientEmail {
		case "a@example.com":
			if len(p.RegistrationIDs) != 2 {
				t.Errorf("parent A registrations = %d, want 2", len(p.RegistrationIDs))
			}
			if !strings.Contains(p.BodyText, "Aisha") || !strings.Contains(p.BodyText, "Omar") {
				t.Errorf("parent A body missing students: %s", p.BodyText)
			}
			if !strings.Contains(p.BodyText, "110.00 AED") {
				t.Errorf("parent A body missing total: %s", p.BodyText)
			}
		case "b@example.com":
			if len(p.RegistrationIDs) != 1 {
				t.Errorf("parent B registrations = %d, want 1", len(p.RegistrationIDs))
			}
		default:
			t.Errorf("unexpected recipient %q", p.RecipientEmail)
		}
	}
}

func TestDeliverFreeBatchWording(t *testing.T) {
	sportID := uuid.New()
	parent := uuid.New()
	student := uuid.New()

	loader := &fakeLoader{
		students:   map[uuid.UUID]string{student: "Mei"},
		recipients: map[uuid.UUID]Recipient{parent: {UserID: parent, Email: "p@example.com", FullName: "P"}},
		sportName:  "Badminton",
	}
	enq := &fakeEnqueuer{}
	d := NewDispatcher(loader, enq, nil)

	if err := d.deliver(context.Background(), []models.Registration{reg(student, parent, sportID, 0)}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(enq.payloads) != 1 {
		t.Fatalf("payloads = %d, want 1", len(enq.payloads))
	}
	if !strings.Contains(enq.payloads[0].BodyText, "No payment was required") {
		t.Errorf("free batch body = %s", enq.payloads[0].BodyText)
	}
}

func TestDeliverSkipsMissingRecipient(t *testing.T) {
	sportID := uuid.New()
	known, unknown := uuid.New(), uuid.New()
	s1, s2 := uuid.New(), uuid.New()

	loader := &fakeLoader{
		students:   map[uuid.UUID]string{s1: "A", s2: "B"},
		recipients: map[uuid.UUID]Recipient{known: {UserID: known, Email: "k@example.com", FullName: "K"}},
		sportName:  "Football",
	}
	enq := &fakeEnqueuer{}
	d := NewDispatcher(loader, enq, nil)

	regs := []models.Registration{
		reg(s1, known, sportID, 100),
		reg(s2, unknown, sportID, 100),
	}
	if err := d.deliver(context.Background(), regs); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(enq.payloads) != 1 || enq.payloads[0].RecipientEmail != "k@example.com" {
		t.Errorf("payloads = %+v, want only the known recipient", enq.payloads)
	}
}

func TestDeliverEnqueueFailureDoesNotBlockOthers(t *testing.T) {
	sportID := uuid.New()
	parentA, parentB := uuid.New(), uuid.New()
	s1, s2 := uuid.New(), uuid.New()

	loader := &fakeLoader{
		students: map[uuid.UUID]string{s1: "A", s2: "B"},
		recipients: map[uuid.UUID]Recipient{
			parentA: {UserID: parentA, Email: "fail@example.com", FullName: "F"},
			parentB: {UserID: parentB, Email: "ok@example.com", FullName: "O"},
		},
		sportName: "Tennis",
	}
	enq := &fakeEnqueuer{failFor: "fail@example.com"}
	d := NewDispatcher(loader, enq, nil)

	regs := []models.Registration{
		reg(s1, parentA, sportID, 100),
		reg(s2, parentB, sportID, 100),
	}
	err := d.deliver(context.Background(), regs)
	if err == nil {
		t.Fatal("expected error from failed enqueue")
	}
	if len(enq.payloads) != 1 || enq.payloads[0].RecipientEmail != "ok@example.com" {
		t.Errorf("payloads = %+v, want the healthy recipient delivered", enq.payloads)
	}
}

func TestDispatchEmptyIsNoop(t *testing.T) {
	enq := &fakeEnqueuer{}
	d := NewDispatcher(&fakeLoader{}, enq, nil)
	d.Dispatch(nil)
	if len(enq.payloads) != 0 {
		t.Errorf("payloads = %d, want 0", len(enq.payloads))
	}
}
