package models

import (
	"time"

	"github.com/google/uuid"
)

// Student is a registrable participant. Students are claimed by a parent (or
// school account) through the parent_students link table before they can be
// registered for a sport.
type Student struct {
	ID          uuid.UUID  `json:"id"`
	FullName    string     `json:"full_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Gender      string     `json:"gender,omitempty"`
	SchoolName  string     `json:"school_name,omitempty"`
	Country     string     `json:"country,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ParentStudent links a claiming parent/school account to a student.
type ParentStudent struct {
	ParentID  uuid.UUID `json:"parent_id"`
	StudentID uuid.UUID `json:"student_id"`
	CreatedAt time.Time `json:"created_at"`
}
