package models

import "time"

// JournalStatus is the outcome of one grade write against the backend
type JournalStatus string

const (
	JournalSynced JournalStatus = "synced"
	JournalFailed JournalStatus = "failed"
)

// Journal target kinds
const (
	TargetExercise = "exercise"
	TargetAttempt  = "attempt"
)

// JournalEntry records one grade write issued by a teacher
type JournalEntry struct {
	ID         string
	TeacherID  string
	ScopeID    string // exercise or exercise list being corrected
	TargetType string
	TargetID   string
	StudentID  string
	Grade      float64
	Status     JournalStatus
	Error      string
	CreatedAt  time.Time
}
