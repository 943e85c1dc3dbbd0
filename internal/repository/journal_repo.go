package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"edupanel/internal/database"
	"edupanel/internal/models"
)

// JournalRepository stores the outcome of every grade write sent to the backend
type JournalRepository struct {
	db  database.DBTX
	now func() time.Time
}

// NewJournalRepository creates a new journal repository
func NewJournalRepository(db database.DBTX) *JournalRepository {
	return &JournalRepository{db: db, now: time.Now}
}

// RecordGrade inserts a journal entry, assigning its ID and timestamp when unset
func (r *JournalRepository) RecordGrade(ctx context.Context, entry *models.JournalEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}

	query := `
		INSERT INTO grade_journal (id, teacher_id, scope_id, target_type, target_id, student_id, grade, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.TeacherID,
		entry.ScopeID,
		entry.TargetType,
		entry.TargetID,
		entry.StudentID,
		entry.Grade,
		string(entry.Status),
		entry.Error,
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record grade journal entry: %w", err)
	}
	return nil
}

// ListByScope returns the journal of an exercise or exercise list, newest first
func (r *JournalRepository) ListByScope(ctx context.Context, scopeID string) ([]models.JournalEntry, error) {
	return r.list(ctx, "WHERE scope_id = ?", scopeID)
}

// ListFailed returns every failed write of a scope, newest first
func (r *JournalRepository) ListFailed(ctx context.Context, scopeID string) ([]models.JournalEntry, error) {
	return r.list(ctx, "WHERE scope_id = ? AND status = ?", scopeID, string(models.JournalFailed))
}

func (r *JournalRepository) list(ctx context.Context, where string, args ...interface{}) ([]models.JournalEntry, error) {
	query := `
		SELECT id, teacher_id, scope_id, target_type, target_id, student_id, grade, status, error, created_at
		FROM grade_journal
		` + where + `
		ORDER BY created_at DESC, id
	`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query grade journal: %w", err)
	}
	defer rows.Close()

	var entries []models.JournalEntry
	for rows.Next() {
		var e models.JournalEntry
		var status string
		if err := rows.Scan(
			&e.ID,
			&e.TeacherID,
			&e.ScopeID,
			&e.TargetType,
			&e.TargetID,
			&e.StudentID,
			&e.Grade,
			&status,
			&e.Error,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan grade journal entry: %w", err)
		}
		e.Status = models.JournalStatus(status)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate grade journal: %w", err)
	}
	return entries, nil
}
