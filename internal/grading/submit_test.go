package grading

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edupanel/internal/models"
)

type correctionCall struct {
	exerciseID string
	studentID  string
	grade      float64
	points     float64
}

type fakeGrader struct {
	mu          sync.Mutex
	corrections []correctionCall
	attempts    map[string]float64
	failAttempt string
	err         error
	onCall      func()
}

func (f *fakeGrader) TeacherCorrection(ctx context.Context, exerciseID, studentID string, grade, points float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onCall != nil {
		f.onCall()
	}
	f.corrections = append(f.corrections, correctionCall{exerciseID, studentID, grade, points})
	return f.err
}

func (f *fakeGrader) UpdateAttemptGrade(ctx context.Context, attemptID string, grade float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempts == nil {
		f.attempts = make(map[string]float64)
	}
	f.attempts[attemptID] = grade
	if attemptID == f.failAttempt {
		return errors.New("backend rejected grade")
	}
	return nil
}

type memoryJournal struct {
	mu      sync.Mutex
	entries []models.JournalEntry
}

func (j *memoryJournal) RecordGrade(ctx context.Context, entry *models.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, *entry)
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSubmitExercise(t *testing.T) {
	grader := &fakeGrader{}
	journal := &memoryJournal{}
	s := NewSubmitter(grader, journal, "teacher-1")
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = fixedClock(now)

	c := NewExerciseCorrection(models.Exercise{ID: "e1", Grade: 10}, []models.StudentAnswer{
		student("s1", nil),
		student("s2", nil),
	})
	require.True(t, c.SetGrade("8,5"))

	require.NoError(t, s.SubmitExercise(context.Background(), c, false))

	require.Len(t, grader.corrections, 1)
	assert.Equal(t, correctionCall{"e1", "s1", 8.5, 10}, grader.corrections[0])
	require.NotNil(t, c.Students[0].FinalGrade)
	assert.Equal(t, 8.5, *c.Students[0].FinalGrade)
	assert.Equal(t, 0, c.Selected)
	assert.False(t, c.Editing)
	assert.Equal(t, "8,5", c.Grade)
	assert.False(t, c.Submitting)
	assert.True(t, c.Notice.Active(now))

	require.Len(t, journal.entries, 1)
	assert.Equal(t, models.JournalSynced, journal.entries[0].Status)
	assert.Equal(t, "teacher-1", journal.entries[0].TeacherID)
}

func TestSubmitExerciseGoToNext(t *testing.T) {
	s := NewSubmitter(&fakeGrader{}, nil, "teacher-1")
	c := NewExerciseCorrection(models.Exercise{ID: "e1", Grade: 10}, []models.StudentAnswer{
		student("s1", nil),
		student("s2", nil),
	})
	c.SetGrade("6")

	require.NoError(t, s.SubmitExercise(context.Background(), c, true))
	assert.Equal(t, 1, c.Selected)
	assert.True(t, c.Editing)
	assert.Equal(t, "0", c.Grade)

	// last student: stays put
	c.SetGrade("4")
	require.NoError(t, s.SubmitExercise(context.Background(), c, true))
	assert.Equal(t, 1, c.Selected)
	assert.False(t, c.Editing)
}

func TestSubmitExerciseFailureLeavesState(t *testing.T) {
	grader := &fakeGrader{err: errors.New("boom")}
	journal := &memoryJournal{}
	s := NewSubmitter(grader, journal, "teacher-1")
	c := NewExerciseCorrection(models.Exercise{ID: "e1", Grade: 10}, []models.StudentAnswer{student("s1", nil)})
	c.SetGrade("9")

	err := s.SubmitExercise(context.Background(), c, true)
	require.Error(t, err)
	assert.Nil(t, c.Students[0].FinalGrade)
	assert.True(t, c.Editing)
	assert.Equal(t, "9", c.Grade)
	assert.False(t, c.Submitting)
	assert.Empty(t, c.Notice.Message)

	require.Len(t, journal.entries, 1)
	assert.Equal(t, models.JournalFailed, journal.entries[0].Status)
	assert.Equal(t, "boom", journal.entries[0].Error)
}

func TestSubmitExerciseCancelledSkipsMerge(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	grader := &fakeGrader{onCall: cancel}
	s := NewSubmitter(grader, nil, "teacher-1")
	c := NewExerciseCorrection(models.Exercise{ID: "e1", Grade: 10}, []models.StudentAnswer{student("s1", nil)})
	c.SetGrade("3")

	err := s.SubmitExercise(ctx, c, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, c.Students[0].FinalGrade)
	assert.Len(t, grader.corrections, 1)
}

func TestSubmitReentrant(t *testing.T) {
	grader := &fakeGrader{}
	s := NewSubmitter(grader, nil, "teacher-1")
	c := NewExerciseCorrection(models.Exercise{ID: "e1", Grade: 10}, []models.StudentAnswer{student("s1", nil)})
	c.Submitting = true

	assert.ErrorIs(t, s.SubmitExercise(context.Background(), c, false), ErrSubmitting)
	assert.Empty(t, grader.corrections)

	empty := NewListCorrection(models.ExerciseList{}, nil)
	assert.ErrorIs(t, s.SubmitList(context.Background(), empty, false), ErrNoStudent)
}

func TestSubmitListEndToEnd(t *testing.T) {
	grader := &fakeGrader{}
	journal := &memoryJournal{}
	s := NewSubmitter(grader, journal, "teacher-1")
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = fixedClock(now)

	list := models.ExerciseList{
		ID: "l1",
		Exercises: []models.Exercise{
			{ID: "e1", Grade: 5},
			{ID: "e2", Grade: 5},
		},
	}
	c := NewListCorrection(list, []models.StudentAnswer{
		student("s1", nil,
			models.Attempt{ID: "t1", ExerciseID: "e1", Answer: "x"},
			models.Attempt{ID: "t2", ExerciseID: "e2", Answer: "y"},
		),
	})
	require.True(t, c.SetExerciseGrade("e1", "3,5"))
	require.True(t, c.SetExerciseGrade("e2", "4"))

	require.NoError(t, s.SubmitList(context.Background(), c, false))

	assert.Equal(t, map[string]float64{"t1": 3.5, "t2": 4}, grader.attempts)
	require.NotNil(t, c.Students[0].FinalGrade)
	assert.InDelta(t, 7.5, *c.Students[0].FinalGrade, 1e-9)
	assert.False(t, c.Editing)
	assert.Equal(t, map[string]string{"e1": "3,5", "e2": "4"}, c.ExerciseGrades)

	assert.True(t, c.Notice.Active(now))
	assert.True(t, c.Notice.Active(now.Add(2999*time.Millisecond)))
	assert.False(t, c.Notice.Active(now.Add(NoticeDuration)))

	assert.Len(t, journal.entries, 2)
}

func TestSubmitListSkipsMissingAttempts(t *testing.T) {
	grader := &fakeGrader{}
	s := NewSubmitter(grader, nil, "teacher-1")
	list := models.ExerciseList{
		ID:        "l1",
		Exercises: []models.Exercise{{ID: "e1", Grade: 4}, {ID: "e2", Grade: 6}},
	}
	c := NewListCorrection(list, []models.StudentAnswer{
		student("s1", nil, models.Attempt{ID: "t1", ExerciseID: "e1"}),
	})
	c.SetExerciseGrade("e1", "2")
	c.SetExerciseGrade("e2", "6")

	require.NoError(t, s.SubmitList(context.Background(), c, false))
	assert.Equal(t, map[string]float64{"t1": 2}, grader.attempts)
	assert.InDelta(t, 2.0, *c.Students[0].FinalGrade, 1e-9)
}

func TestSubmitListPartialFailure(t *testing.T) {
	grader := &fakeGrader{failAttempt: "t2"}
	journal := &memoryJournal{}
	s := NewSubmitter(grader, journal, "teacher-1")
	list := models.ExerciseList{
		ID:        "l1",
		Exercises: []models.Exercise{{ID: "e1", Grade: 5}, {ID: "e2", Grade: 5}},
	}
	c := NewListCorrection(list, []models.StudentAnswer{
		student("s1", nil,
			models.Attempt{ID: "t1", ExerciseID: "e1"},
			models.Attempt{ID: "t2", ExerciseID: "e2"},
		),
	})
	c.SetExerciseGrade("e1", "1")
	c.SetExerciseGrade("e2", "2")

	require.Error(t, s.SubmitList(context.Background(), c, false))

	// both writes were issued, local state untouched
	assert.Len(t, grader.attempts, 2)
	assert.Nil(t, c.Students[0].FinalGrade)
	assert.Nil(t, c.Students[0].Attempts[0].Grade)
	assert.True(t, c.Editing)

	statuses := map[string]models.JournalStatus{}
	for _, e := range journal.entries {
		statuses[e.TargetID] = e.Status
	}
	assert.Equal(t, map[string]models.JournalStatus{
		"t1": models.JournalSynced,
		"t2": models.JournalFailed,
	}, statuses)
}

func TestNormalizedFinalGrade(t *testing.T) {
	assert.InDelta(t, 5.0, NormalizedFinalGrade(2+3, 4+6), 1e-9)
	assert.Zero(t, NormalizedFinalGrade(3, 0))
}

func TestApplyListPatchDoesNotMutateInput(t *testing.T) {
	students := []models.StudentAnswer{
		student("s1", nil,
			models.Attempt{ID: "t1", ExerciseID: "e1", Grade: models.Float64(1)},
			models.Attempt{ID: "t2", ExerciseID: "e2"},
		),
		student("s2", nil),
	}
	out := ApplyListPatch(students, ListPatch{StudentID: "s1", Grades: map[string]float64{"t2": 3}, MaxTotal: 8})

	assert.Nil(t, students[0].FinalGrade)
	assert.Nil(t, students[0].Attempts[1].Grade)
	require.NotNil(t, out[0].FinalGrade)
	assert.InDelta(t, 5.0, *out[0].FinalGrade, 1e-9)
	assert.Nil(t, out[1].FinalGrade)
}
