package models

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus values.
const (
	RegistrationStatusPending  = "pending"
	RegistrationStatusApproved = "approved"
	RegistrationStatusRejected = "rejected"
)

// PaymentStatus values for registrations.
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFree    = "free"
)

// PaymentMethod values.
const (
	PaymentMethodCard = "card"
	PaymentMethodFree = "free"
)

// Registration is one student registered for one sport, optionally tied to an
// event. At most one non-rejected registration may exist per
// (student, sport, event); the database enforces this with a partial unique
// index. Rows are created only by the registration writer and are immutable
// afterwards except for status transitions done by admin flows.
type Registration struct {
	ID                  uuid.UUID  `json:"id"`
	StudentID           uuid.UUID  `json:"student_id"`
	SportID             uuid.UUID  `json:"sport_id"`
	EventID             *uuid.UUID `json:"event_id,omitempty"`
	ParentID            uuid.UUID  `json:"parent_id"`
	SchoolID            *uuid.UUID `json:"school_id,omitempty"`
	Status              string     `json:"status"`
	PaymentStatus       string     `json:"payment_status"`
	PaymentMethod       string     `json:"payment_method,omitempty"`
	PaymentIntentID     string     `json:"payment_intent_id,omitempty"`
	PaymentAmountCents  int64      `json:"payment_amount_cents"`
	PaymentCurrency     string     `json:"payment_currency,omitempty"`
	IsGroupRegistration bool       `json:"is_group_registration"`
	GroupRegistrationID *uuid.UUID `json:"group_registration_id,omitempty"`
	IsSubstitute        bool       `json:"is_substitute"`
	AttendedAt          *time.Time `json:"attended_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// CheckInToken is a single-use attendance check-in token. Its string form is
// the QR payload scanned at the venue.
type CheckInToken struct {
	ID             uuid.UUID  `json:"id"`
	RegistrationID uuid.UUID  `json:"registration_id"`
	Token          string     `json:"token"`
	ExpiresAt      time.Time  `json:"expires_at"`
	UsedAt         *time.Time `json:"used_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
