package notifications

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arena-sports/backend/internal/models"
	"github.com/arena-sports/backend/pkg/queue"
)

// DispatchTimeout bounds one background dispatch run, including its queries.
const DispatchTimeout = 15 * time.Second

// Loader reads the display data referenced by registration rows.
type Loader interface {
	StudentNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	Recipients(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Recipient, error)
	SportName(ctx context.Context, id uuid.UUID) (string, error)
	EventName(ctx context.Context, eventID *uuid.UUID) (string, error)
}

// Enqueuer pushes email jobs onto the worker queue.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Dispatcher turns freshly committed registrations into confirmation email
// jobs. Dispatch is fire-and-forget: it runs on its own goroutine with its own
// context and never surfaces errors to the registration flow.
type Dispatcher struct {
	loader Loader
	queue  Enqueuer
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(loader Loader, q Enqueuer, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{loader: loader, queue: q, logger: logger}
}

// Dispatch schedules confirmation emails for the given registrations and
// returns immediately. The HTTP request that created the registrations does
// not wait on, and cannot fail because of, anything that happens here.
func (d *Dispatcher) Dispatch(regs []models.Registration) {
	if len(regs) == 0 {
		return
	}
	snapshot := make([]models.Registration, len(regs))
	copy(snapshot, regs)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), DispatchTimeout)
		defer cancel()
		if err := d.deliver(ctx, snapshot); err != nil {
			d.logger.Error("notification dispatch failed",
				zap.Error(err),
				zap.Int("registrations", len(snapshot)),
			)
		}
	}()
}

// deliver builds and enqueues one consolidated email per parent. All
// registrations in one call share a sport (and event) because they come out
// of a single reconciliation.
func (d *Dispatcher) deliver(ctx context.Context, regs []models.Registration) error {
	studentIDs := make([]uuid.UUID, 0, len(regs))
	parentIDs := make([]uuid.UUID, 0, len(regs))
	seenParent := map[uuid.UUID]bool{}
	for _, reg := range regs {
		studentIDs = append(studentIDs, reg.StudentID)
		if !seenParent[reg.ParentID] {
			seenParent[reg.ParentID] = true
			parentIDs = append(parentIDs, reg.ParentID)
		}
	}

	names, err := d.loader.StudentNames(ctx, studentIDs)
	if err != nil {
		return fmt.Errorf("load students: %w", err)
	}
	recipients, err := d.loader.Recipients(ctx, parentIDs)
	if err != nil {
		return fmt.Errorf("load recipients: %w", err)
	}
	sportName, err := d.loader.SportName(ctx, regs[0].SportID)
	if err != nil {
		return fmt.Errorf("load sport: %w", err)
	}
	eventName, err := d.loader.EventName(ctx, regs[0].EventID)
	if err != nil {
		return fmt.Errorf("load event: %w", err)
	}

	byParent := map[uuid.UUID][]models.Registration{}
	for _, reg := range regs {
		byParent[reg.ParentID] = append(byParent[reg.ParentID], reg)
	}

	var firstErr error
	for parentID, group := range byParent {
		rec, ok := recipients[parentID]
		if !ok || rec.Email == "" {
			d.logger.Warn("no recipient for parent, skipping email", zap.String("parent_id", parentID.String()))
			continue
		}
		payload := buildConfirmation(rec, group, names, sportName, eventName)
		if err := d.queue.EnqueueEmail(ctx, payload); err != nil {
			d.logger.Error("enqueue confirmation email failed",
				zap.Error(err),
				zap.String("recipient", rec.Email),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func buildConfirmation(rec Recipient, regs []models.Registration, names map[uuid.UUID]string, sportName, eventName string) queue.EmailPayload {
	regIDs := make([]uuid.UUID, 0, len(regs))
	lines := make([]string, 0, len(regs))
	var totalCents int64
	currency := ""
	for _, reg := range regs {
		regIDs = append(regIDs, reg.ID)
		name := names[reg.StudentID]
		if name == "" {
			name = reg.StudentID.String()
		}
		lines = append(lines, "  - "+name)
		totalCents += reg.PaymentAmountCents
		if currency == "" {
			currency = reg.PaymentCurrency
		}
	}
	sort.Strings(lines)

	subject := fmt.Sprintf("Registration confirmed: %s", sportName)
	if eventName != "" {
		subject = fmt.Sprintf("Registration confirmed: %s (%s)", sportName, eventName)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\n", rec.FullName)
	fmt.Fprintf(&text, "The following students are now registered for %s", sportName)
	if eventName != "" {
		fmt.Fprintf(&text, " at %s", eventName)
	}
	text.WriteString(":\n\n")
	text.WriteString(strings.Join(lines, "\n"))
	text.WriteString("\n\n")
	if totalCents > 0 {
		fmt.Fprintf(&text, "Amount paid: %.2f %s\n\n", float64(totalCents)/100, strings.ToUpper(currency))
	} else {
		text.WriteString("No payment was required for this registration.\n\n")
	}
	text.WriteString("You will receive a check-in pass closer to the event date.\n")

	var html strings.Builder
	fmt.Fprintf(&html, "<p>Hi %s,</p><p>The following students are now registered for <b>%s</b>", rec.FullName, sportName)
	if eventName != "" {
		fmt.Fprintf(&html, " at <b>%s</b>", eventName)
	}
	html.WriteString(":</p><ul>")
	for _, line := range lines {
		html.WriteString("<li>" + strings.TrimPrefix(line, "  - ") + "</li>")
	}
	html.WriteString("</ul>")
	if totalCents > 0 {
		fmt.Fprintf(&html, "<p>Amount paid: %.2f %s</p>", float64(totalCents)/100, strings.ToUpper(currency))
	}

	return queue.EmailPayload{
		EmailType:       models.EmailTypeRegistrationConfirmation,
		RegistrationIDs: regIDs,
		RecipientEmail:  rec.Email,
		Subject:         subject,
		BodyText:        text.String(),
		BodyHTML:        html.String(),
	}
}
