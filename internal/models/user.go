package models

import "time"

// Roles reported by the backend
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// BackendUser is the account returned by the remote backend
type BackendUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// IsTeacher reports whether the user may author content and grade
func (u BackendUser) IsTeacher() bool {
	return u.Role == RoleTeacher
}

// UserRef is the compact user reference embedded in progress records
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Session represents an authenticated browser session bound to a backend bearer token
type Session struct {
	ID        string
	User      BackendUser
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
