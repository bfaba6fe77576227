package registrations

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrSportNotFound means the sport does not exist.
	ErrSportNotFound = errors.New("sport not found")
	// ErrEventNotFound means the event does not exist.
	ErrEventNotFound = errors.New("event not found")
	// ErrUserNotFound means the acting user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrNoStudents means the batch had no student IDs.
	ErrNoStudents = errors.New("no students to register")
)

// MissingStudentsError names student IDs that were requested but do not exist.
type MissingStudentsError struct {
	IDs []uuid.UUID
}

func (e *MissingStudentsError) Error() string {
	return "students not found: " + joinIDs(e.IDs)
}

// DuplicateRegistrationError names students that already hold a non-rejected
// registration for the same sport and event.
type DuplicateRegistrationError struct {
	StudentIDs []uuid.UUID
}

func (e *DuplicateRegistrationError) Error() string {
	return "students already registered: " + joinIDs(e.StudentIDs)
}

// UnclaimedStudentError means a student has no parent link; students must be
// claimed before they can be registered.
type UnclaimedStudentError struct {
	StudentID uuid.UUID
}

func (e *UnclaimedStudentError) Error() string {
	return fmt.Sprintf("student %s has not been claimed by a parent", e.StudentID)
}

func joinIDs(ids []uuid.UUID) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = id.String()
	}
	return strings.Join(s, ", ")
}
