package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"edupanel/internal/backend"
	"edupanel/internal/grading"
	"edupanel/internal/models"
)

var (
	ErrEmptyAnswer     = errors.New("answer cannot be empty")
	ErrInvalidChoice   = errors.New("select one of the options")
	ErrListCompleted   = errors.New("this list was already submitted")
	ErrDeadlinePassed  = errors.New("the deadline for this list has passed")
	ErrUnknownExercise = errors.New("exercise does not belong to this list")
	ErrUnsupportedType = errors.New("unsupported exercise type")
)

// AnswerInput is a student's answer as typed or clicked in the form
type AnswerInput struct {
	Text string
	// Choice is the selected option index of a multiple-choice exercise
	Choice string
	// TrueFalse maps statement keys to "true" or "false"
	TrueFalse map[string]string
}

// EncodeAnswer converts form input into the wire answer for ex
func EncodeAnswer(ex models.Exercise, in AnswerInput) (string, error) {
	switch ex.Type {
	case models.ExerciseOpen:
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return "", ErrEmptyAnswer
		}
		return text, nil

	case models.ExerciseMultipleChoice:
		idx, err := strconv.Atoi(strings.TrimSpace(in.Choice))
		if err != nil || idx < 0 || idx >= len(ex.Choices) {
			return "", ErrInvalidChoice
		}
		return grading.EncodeMultipleChoice(idx), nil

	case models.ExerciseTrueFalse:
		selections := make(map[string]bool, len(in.TrueFalse))
		for key, value := range in.TrueFalse {
			switch value {
			case "true":
				selections[key] = true
			case "false":
				selections[key] = false
			}
		}
		return grading.EncodeTrueFalse(ex.TrueFalse, selections)
	}
	return "", ErrUnsupportedType
}

// StudentService lets students answer exercises and lists
type StudentService struct {
	client *backend.Client
}

// NewStudentService creates a new student service
func NewStudentService(client *backend.Client) *StudentService {
	return &StudentService{client: client}
}

// GetExercise loads an exercise to answer
func (s *StudentService) GetExercise(ctx context.Context, session *models.Session, exerciseID string) (*models.Exercise, error) {
	return userClient(s.client, session).GetExercise(ctx, exerciseID)
}

// SubmitExercise encodes and sends the student's answer to one exercise
func (s *StudentService) SubmitExercise(ctx context.Context, session *models.Session, ex models.Exercise, in AnswerInput) (*models.StudentAnswer, error) {
	answer, err := EncodeAnswer(ex, in)
	if err != nil {
		return nil, err
	}
	out, err := userClient(s.client, session).SubmitExerciseAnswer(ctx, ex.ID, answer)
	if err != nil {
		return nil, fmt.Errorf("failed to submit answer: %w", err)
	}
	return out, nil
}

// ListView is an exercise list as presented to a student
type ListView struct {
	List       models.ExerciseList
	Completion models.ListCompletion
}

// GetList loads a hydrated list and the student's completion state
func (s *StudentService) GetList(ctx context.Context, session *models.Session, listID string) (*ListView, error) {
	client := userClient(s.client, session)

	var list *models.ExerciseList
	var completion *models.ListCompletion
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
		completion, err = client.ListCompletion(gctx, listID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load list: %w", err)
	}
	return &ListView{List: *list, Completion: *completion}, nil
}

// SubmitList encodes every answer and sends them in one request.
// The list must be open: not completed and before its deadline.
func (s *StudentService) SubmitList(ctx context.Context, session *models.Session, view *ListView, inputs map[string]AnswerInput) (*models.StudentAnswer, error) {
	if view.Completion.Completed {
		return nil, ErrListCompleted
	}
	if view.Completion.DeadlinePassed {
		return nil, ErrDeadlinePassed
	}

	for id := range inputs {
		found := false
		for _, ex := range view.List.Exercises {
			if ex.ID == id {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrUnknownExercise, id)
		}
	}

	answers := make([]models.AttemptAnswer, 0, len(view.List.Exercises))
	for i, ex := range view.List.Exercises {
		answer, err := EncodeAnswer(ex, inputs[ex.ID])
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		answers = append(answers, models.AttemptAnswer{ExerciseID: ex.ID, Answer: answer})
	}

	out, err := userClient(s.client, session).SubmitListAnswers(ctx, view.List.ID, answers)
	if err != nil {
		return nil, fmt.Errorf("failed to submit list: %w", err)
	}
	return out, nil
}
