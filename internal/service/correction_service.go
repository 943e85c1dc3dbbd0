package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"edupanel/internal/backend"
	"edupanel/internal/grading"
	"edupanel/internal/models"
	"edupanel/internal/repository"
)

var _ grading.Grader = (*backend.Client)(nil)

// maxHydrateConcurrency bounds the parallel exercise fetches when hydrating a list
const maxHydrateConcurrency = 4

// userClient returns a backend client that calls on behalf of session
func userClient(base *backend.Client, session *models.Session) *backend.Client {
	return base.WithTokenSource(SessionTokenSource(session))
}

// hydrateList fills list.Exercises from list.ExerciseIDs, keeping their order
func hydrateList(ctx context.Context, client *backend.Client, list *models.ExerciseList) error {
	if len(list.Exercises) > 0 || len(list.ExerciseIDs) == 0 {
		return nil
	}
	exercises := make([]models.Exercise, len(list.ExerciseIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxHydrateConcurrency)
	for i, id := range list.ExerciseIDs {
		g.Go(func() error {
			ex, err := client.GetExercise(gctx, id)
			if err != nil {
				return fmt.Errorf("failed to load exercise %s: %w", id, err)
			}
			exercises[i] = *ex
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	list.Exercises = exercises
	return nil
}

// inflight remembers which corrections are being submitted right now
type inflight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func (f *inflight) acquire(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys == nil {
		f.keys = make(map[string]struct{})
	}
	if _, busy := f.keys[key]; busy {
		return false
	}
	f.keys[key] = struct{}{}
	return true
}

func (f *inflight) release(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
}

// CorrectionService drives teacher grading of exercises and exercise lists
type CorrectionService struct {
	client   *backend.Client
	journal  *repository.JournalRepository
	email    *EmailService
	inflight inflight
}

// NewCorrectionService creates a new correction service
func NewCorrectionService(client *backend.Client, journal *repository.JournalRepository, email *EmailService) *CorrectionService {
	return &CorrectionService{client: client, journal: journal, email: email}
}

// LoadExercise fetches the exercise and every student's answer to it
func (s *CorrectionService) LoadExercise(ctx context.Context, session *models.Session, exerciseID string) (*grading.ExerciseCorrection, error) {
	client := userClient(s.client, session)

	var exercise *models.Exercise
	var answers []models.StudentAnswer
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		exercise, err = client.GetExercise(gctx, exerciseID)
		return err
	})
	g.Go(func() error {
		var err error
		answers, err = client.ExerciseAnswers(gctx, exerciseID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load exercise correction: %w", err)
	}

	return grading.NewExerciseCorrection(*exercise, answers), nil
}

// LoadList fetches the list with its exercises and every student's attempts
func (s *CorrectionService) LoadList(ctx context.Context, session *models.Session, listID string) (*grading.ListCorrection, error) {
	client := userClient(s.client, session)

	var list *models.ExerciseList
	var answers []models.StudentAnswer
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if list, err = client.GetExerciseList(gctx, listID); err != nil {
			return err
		}
		return hydrateList(gctx, client, list)
	})
	g.Go(func() error {
		var err error
		answers, err = client.ExerciseListAnswers(gctx, listID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load list correction: %w", err)
	}

	return grading.NewListCorrection(*list, answers), nil
}

// SubmitExercise persists the selected student's grade. Concurrent submissions for the
// same teacher and exercise are rejected with grading.ErrSubmitting.
func (s *CorrectionService) SubmitExercise(ctx context.Context, session *models.Session, c *grading.ExerciseCorrection, goToNext bool) error {
	key := session.User.ID + ":" + c.Exercise.ID
	if !s.inflight.acquire(key) {
		return grading.ErrSubmitting
	}
	defer s.inflight.release(key)

	student, ok := c.Current()
	if !ok {
		return grading.ErrNoStudent
	}
	graded := student.User

	submitter := grading.NewSubmitter(userClient(s.client, session), s.journal, session.User.ID)
	if err := submitter.SubmitExercise(ctx, c, goToNext); err != nil {
		return err
	}

	s.notify(ctx, graded, c.Exercise.Statement, c.Students, "/student/exercises/"+c.Exercise.ID)
	return nil
}

// SubmitList persists the selected student's per-exercise grades for a list
func (s *CorrectionService) SubmitList(ctx context.Context, session *models.Session, c *grading.ListCorrection, goToNext bool) error {
	key := session.User.ID + ":" + c.List.ID
	if !s.inflight.acquire(key) {
		return grading.ErrSubmitting
	}
	defer s.inflight.release(key)

	student, ok := c.Current()
	if !ok {
		return grading.ErrNoStudent
	}
	graded := student.User

	submitter := grading.NewSubmitter(userClient(s.client, session), s.journal, session.User.ID)
	if err := submitter.SubmitList(ctx, c, goToNext); err != nil {
		return err
	}

	s.notify(ctx, graded, c.List.Name, c.Students, "/student/lists/"+c.List.ID)
	return nil
}

// notify emails the graded student; failures are logged only
func (s *CorrectionService) notify(ctx context.Context, user models.UserRef, title string, students []models.StudentAnswer, link string) {
	if s.email == nil || !s.email.IsEnabled() {
		return
	}
	for i := range students {
		if students[i].User.ID != user.ID || students[i].FinalGrade == nil {
			continue
		}
		if err := s.email.SendGradePublished(ctx, user.Email, user.Name, title, *students[i].FinalGrade, link); err != nil {
			log.Printf("Warning: failed to send grade email to %s: %v", user.Email, err)
		}
		return
	}
}

// Journal returns the grade write history of an exercise or list
func (s *CorrectionService) Journal(ctx context.Context, scopeID string) ([]models.JournalEntry, error) {
	entries, err := s.journal.ListByScope(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load grade journal: %w", err)
	}
	return entries, nil
}
