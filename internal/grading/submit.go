package grading

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"edupanel/internal/models"
)

var (
	// ErrSubmitting is returned when a submission is already in flight for the same state
	ErrSubmitting = errors.New("submission already in progress")
	// ErrNoStudent is returned when the roster is empty
	ErrNoStudent = errors.New("no student selected")
)

// SavedMessage is the notice shown after a grade is persisted
const SavedMessage = "Grade saved successfully"

// Grader persists grades on the backend.
type Grader interface {
	TeacherCorrection(ctx context.Context, exerciseID, studentID string, grade, points float64) error
	UpdateAttemptGrade(ctx context.Context, attemptID string, grade float64) error
}

// Journal records every grade write and its outcome.
type Journal interface {
	RecordGrade(ctx context.Context, entry *models.JournalEntry) error
}

// Submitter persists corrections and reconciles local state without refetching.
type Submitter struct {
	grader    Grader
	journal   Journal
	teacherID string
	now       func() time.Time
}

// NewSubmitter creates a submitter. journal may be nil.
func NewSubmitter(grader Grader, journal Journal, teacherID string) *Submitter {
	return &Submitter{
		grader:    grader,
		journal:   journal,
		teacherID: teacherID,
		now:       time.Now,
	}
}

// SubmitExercise persists the grade of the selected student for an individual exercise.
// On success the student's final grade is replaced locally, editing ends and a
// notice is shown. With goToNext the next student is selected unless the current
// one is the last.
func (s *Submitter) SubmitExercise(ctx context.Context, c *ExerciseCorrection, goToNext bool) error {
	if c.Submitting {
		return ErrSubmitting
	}
	student, ok := c.Current()
	if !ok {
		return ErrNoStudent
	}
	c.Submitting = true
	defer func() { c.Submitting = false }()

	studentID := student.User.ID
	grade := ParseGrade(c.Grade)

	err := s.grader.TeacherCorrection(ctx, c.Exercise.ID, studentID, grade, c.Exercise.Grade)
	s.record(ctx, models.JournalEntry{
		ScopeID:    c.Exercise.ID,
		TargetType: models.TargetExercise,
		TargetID:   c.Exercise.ID,
		StudentID:  studentID,
		Grade:      grade,
	}, err)
	if err != nil {
		log.Printf("Error submitting correction for exercise %s student %s: %v", c.Exercise.ID, studentID, err)
		return fmt.Errorf("failed to submit correction: %w", err)
	}

	// The view may be gone by the time the backend answers
	if err := ctx.Err(); err != nil {
		return err
	}

	c.SetRoster(ApplyExercisePatch(c.Students, ExercisePatch{StudentID: studentID, FinalGrade: grade}))
	c.Editing = false
	c.Notice = NewNotice(SavedMessage, s.now())
	if goToNext && !c.IsLast() {
		c.NextStudent()
	}
	return nil
}

type attemptUpdate struct {
	exerciseID string
	attemptID  string
	grade      float64
	err        error
}

// SubmitList persists one grade per answered exercise of the list for the selected
// student. All updates run concurrently and must all succeed before local state
// changes. Writes that already succeeded are not rolled back on failure.
func (s *Submitter) SubmitList(ctx context.Context, c *ListCorrection, goToNext bool) error {
	if c.Submitting {
		return ErrSubmitting
	}
	student, ok := c.Current()
	if !ok {
		return ErrNoStudent
	}
	c.Submitting = true
	defer func() { c.Submitting = false }()

	studentID := student.User.ID
	var updates []*attemptUpdate
	for _, ex := range c.List.Exercises {
		attempt, found := student.AttemptFor(ex.ID)
		if !found || attempt.ID == "" {
			continue
		}
		updates = append(updates, &attemptUpdate{
			exerciseID: ex.ID,
			attemptID:  attempt.ID,
			grade:      ParseGrade(c.ExerciseGrades[ex.ID]),
		})
	}

	var g errgroup.Group
	for _, u := range updates {
		g.Go(func() error {
			u.err = s.grader.UpdateAttemptGrade(ctx, u.attemptID, u.grade)
			return u.err
		})
	}
	err := g.Wait()

	for _, u := range updates {
		s.record(ctx, models.JournalEntry{
			ScopeID:    c.List.ID,
			TargetType: models.TargetAttempt,
			TargetID:   u.attemptID,
			StudentID:  studentID,
			Grade:      u.grade,
		}, u.err)
	}
	if err != nil {
		log.Printf("Error submitting list correction for list %s student %s: %v", c.List.ID, studentID, err)
		return fmt.Errorf("failed to submit list correction: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	patch := ListPatch{
		StudentID: studentID,
		Grades:    make(map[string]float64, len(updates)),
		MaxTotal:  c.TotalPossible(),
	}
	for _, u := range updates {
		patch.Grades[u.attemptID] = u.grade
	}
	c.SetRoster(ApplyListPatch(c.Students, patch))
	c.Editing = false
	c.Notice = NewNotice(SavedMessage, s.now())
	if goToNext && !c.IsLast() {
		c.NextStudent()
	}
	return nil
}

func (s *Submitter) record(ctx context.Context, entry models.JournalEntry, callErr error) {
	if s.journal == nil {
		return
	}
	entry.TeacherID = s.teacherID
	entry.Status = models.JournalSynced
	if callErr != nil {
		entry.Status = models.JournalFailed
		entry.Error = callErr.Error()
	}
	// Journal the outcome even when the request context was cancelled mid-call
	if err := s.journal.RecordGrade(context.WithoutCancel(ctx), &entry); err != nil {
		log.Printf("Warning: failed to record grade journal entry for %s: %v", entry.TargetID, err)
	}
}
