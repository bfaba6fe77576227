package models

import (
	"time"

	"github.com/google/uuid"
)

// Sport is a registrable sport discipline. Team sports require a minimum
// roster size and their registrations share a group registration ID.
type Sport struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	PerStudentFeeCents int64     `json:"per_student_fee_cents"`
	FeeCurrency        string    `json:"fee_currency"`
	IsTeamSport        bool      `json:"is_team_sport"`
	MinRosterSize      int       `json:"min_roster_size"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Event is a scheduled competition a registration may be tied to.
type Event struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Location  string     `json:"location,omitempty"`
	Country   string     `json:"country,omitempty"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
