package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the platform.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleSchool Role = "school"
	RoleParent Role = "parent"
)

// User represents a platform account: a parent, a school, or an admin.
type User struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	Password   string    `json:"-"`
	FullName   string    `json:"full_name"`
	Role       Role      `json:"role"`
	Phone      string    `json:"phone,omitempty"`
	Country    string    `json:"country,omitempty"`
	SchoolName string    `json:"school_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	Role       Role      `json:"role"`
	Phone      string    `json:"phone,omitempty"`
	Country    string    `json:"country,omitempty"`
	SchoolName string    `json:"school_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:         u.ID,
		Email:      u.Email,
		FullName:   u.FullName,
		Role:       u.Role,
		Phone:      u.Phone,
		Country:    u.Country,
		SchoolName: u.SchoolName,
		CreatedAt:  u.CreatedAt,
	}
}
