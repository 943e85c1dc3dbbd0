package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"edupanel/internal/backend"
	"edupanel/internal/grading"
	"edupanel/internal/models"
	"edupanel/internal/validation"
)

// ErrNoCorrectOption blocks saving a choice exercise whose key is missing
var ErrNoCorrectOption = errors.New("select a correct option before saving")

// LessonPlanForm is the lesson plan editor form
type LessonPlanForm struct {
	Name string `form:"name" validate:"notblank,max=120"`
	Icon string `form:"icon" validate:"max=60"`
}

// LessonForm is the lesson editor form
type LessonForm struct {
	Title        string `form:"title" validate:"notblank,max=200"`
	Content      string `form:"content" validate:"notblank"`
	VideoURL     string `form:"video_url" validate:"omitempty,url"`
	LessonPlanID string `form:"lesson_plan_id"`
}

// ExerciseForm is the exercise editor form. Choices and Statements are the
// option rows; Correct is the selected choice index and Truth the answers
// of the true/false statements in the same order.
type ExerciseForm struct {
	Statement    string   `form:"statement" validate:"notblank"`
	Type         string   `form:"type" validate:"required,exercise_type"`
	Grade        float64  `form:"grade" validate:"gt=0,lte=1000"`
	ShowAnswer   bool     `form:"show_answer"`
	Answer       string   `form:"answer"`
	Choices      []string `form:"choices" validate:"dive,notblank"`
	Correct      string   `form:"correct"`
	Statements   []string `form:"statements" validate:"dive,notblank"`
	Truth        []bool   `form:"truth"`
	LessonPlanID string   `form:"lesson_plan_id"`
}

// ExerciseListForm is the exercise list editor form
type ExerciseListForm struct {
	Name         string     `form:"name" validate:"notblank,max=120"`
	ExerciseIDs  []string   `form:"exercises_ids" validate:"min=1,dive,notblank"`
	DueDate      *time.Time `form:"due_date"`
	LessonPlanID string     `form:"lesson_plan_id"`
}

// BuildExercise validates the form and converts it into an exercise with its answer key
func BuildExercise(form ExerciseForm) (models.Exercise, error) {
	form.Statement = strings.TrimSpace(form.Statement)
	if err := validation.Struct(form); err != nil {
		return models.Exercise{}, err
	}

	ex := models.Exercise{
		Statement:  form.Statement,
		Type:       models.ExerciseType(form.Type),
		ShowAnswer: form.ShowAnswer,
		Grade:      form.Grade,
	}

	switch ex.Type {
	case models.ExerciseOpen:
		ex.Answer = strings.TrimSpace(form.Answer)

	case models.ExerciseMultipleChoice:
		if len(form.Choices) < 2 {
			return models.Exercise{}, validation.Errors{"choices": "add at least two options"}
		}
		idx, err := strconv.Atoi(strings.TrimSpace(form.Correct))
		if err != nil || idx < 0 || idx >= len(form.Choices) {
			return models.Exercise{}, ErrNoCorrectOption
		}
		ex.Choices = make([]string, len(form.Choices))
		for i, c := range form.Choices {
			ex.Choices[i] = strings.TrimSpace(c)
		}
		ex.Answer = grading.EncodeMultipleChoice(idx)

	case models.ExerciseTrueFalse:
		if len(form.Statements) == 0 {
			return models.Exercise{}, validation.Errors{"statements": "add at least one statement"}
		}
		if len(form.Truth) != len(form.Statements) {
			return models.Exercise{}, ErrNoCorrectOption
		}
		ex.TrueFalse = make([]models.TrueFalseOption, len(form.Statements))
		for i, s := range form.Statements {
			ex.TrueFalse[i] = models.TrueFalseOption{Statement: strings.TrimSpace(s), Answer: form.Truth[i]}
		}
		ex.Answer = grading.AnswerKey(ex)
	}
	return ex, nil
}

// ContentService manages teacher-authored content on the backend
type ContentService struct {
	client *backend.Client
}

// NewContentService creates a new content service
func NewContentService(client *backend.Client) *ContentService {
	return &ContentService{client: client}
}

// PlanContents is a lesson plan with its attached content resolved
type PlanContents struct {
	Plan      models.LessonPlan
	Lessons   []models.Lesson
	Exercises []models.Exercise
	Lists     []models.ExerciseList
}

// ListLessonPlans returns every lesson plan visible to the user
func (s *ContentService) ListLessonPlans(ctx context.Context, session *models.Session) ([]models.LessonPlan, error) {
	plans, err := userClient(s.client, session).ListLessonPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list lesson plans: %w", err)
	}
	return plans, nil
}

// GetPlanContents loads a lesson plan and resolves everything attached to it
func (s *ContentService) GetPlanContents(ctx context.Context, session *models.Session, planID string) (*PlanContents, error) {
	client := userClient(s.client, session)

	var plan *models.LessonPlan
	var assocs []models.ContentAssociation
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		plan, err = client.GetLessonPlan(gctx, planID)
		return err
	})
	g.Go(func() error {
		var err error
		assocs, err = client.LessonPlanContents(gctx, planID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load lesson plan: %w", err)
	}

	out := &PlanContents{Plan: *plan}
	lessons := make([]*models.Lesson, len(assocs))
	exercises := make([]*models.Exercise, len(assocs))
	lists := make([]*models.ExerciseList, len(assocs))

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(maxHydrateConcurrency)
	for i, a := range assocs {
		g.Go(func() error {
			var err error
			switch a.ContentType {
			case models.ContentLesson:
				lessons[i], err = client.GetLesson(gctx, a.ContentID)
			case models.ContentExercise:
				exercises[i], err = client.GetExercise(gctx, a.ContentID)
			case models.ContentExerciseList:
				lists[i], err = client.GetExerciseList(gctx, a.ContentID)
			default:
				log.Printf("Warning: lesson plan %s has content %s of unknown type %q", planID, a.ContentID, a.ContentType)
			}
			if backend.IsNotFound(err) {
				log.Printf("Warning: lesson plan %s references missing %s %s", planID, a.ContentType, a.ContentID)
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load lesson plan contents: %w", err)
	}

	for i := range assocs {
		switch {
		case lessons[i] != nil:
			out.Lessons = append(out.Lessons, *lessons[i])
		case exercises[i] != nil:
			out.Exercises = append(out.Exercises, *exercises[i])
		case lists[i] != nil:
			out.Lists = append(out.Lists, *lists[i])
		}
	}
	return out, nil
}

// CreateLessonPlan creates a lesson plan
func (s *ContentService) CreateLessonPlan(ctx context.Context, session *models.Session, form LessonPlanForm) (*models.LessonPlan, error) {
	form.Name = strings.TrimSpace(form.Name)
	if err := validation.Struct(form); err != nil {
		return nil, err
	}
	plan, err := userClient(s.client, session).CreateLessonPlan(ctx, models.LessonPlan{Name: form.Name, Icon: form.Icon})
	if err != nil {
		return nil, fmt.Errorf("failed to create lesson plan: %w", err)
	}
	return plan, nil
}

// UpdateLessonPlan renames a lesson plan or changes its icon
func (s *ContentService) UpdateLessonPlan(ctx context.Context, session *models.Session, id string, form LessonPlanForm) error {
	form.Name = strings.TrimSpace(form.Name)
	if err := validation.Struct(form); err != nil {
		return err
	}
	if err := userClient(s.client, session).UpdateLessonPlan(ctx, id, models.LessonPlan{Name: form.Name, Icon: form.Icon}); err != nil {
		return fmt.Errorf("failed to update lesson plan: %w", err)
	}
	return nil
}

// DeleteLessonPlan deletes a lesson plan
func (s *ContentService) DeleteLessonPlan(ctx context.Context, session *models.Session, id string) error {
	if err := userClient(s.client, session).DeleteLessonPlan(ctx, id); err != nil {
		return fmt.Errorf("failed to delete lesson plan: %w", err)
	}
	return nil
}

// attach links freshly created content to its lesson plan, if one was chosen
func attach(ctx context.Context, client *backend.Client, planID, contentID, contentType string) error {
	if planID == "" {
		return nil
	}
	err := client.AttachContent(ctx, models.ContentAssociation{
		ContentID:    contentID,
		ContentType:  contentType,
		LessonPlanID: planID,
	})
	if err != nil {
		return fmt.Errorf("failed to attach %s to lesson plan: %w", contentType, err)
	}
	return nil
}

// GetLesson returns a lesson
func (s *ContentService) GetLesson(ctx context.Context, session *models.Session, id string) (*models.Lesson, error) {
	return userClient(s.client, session).GetLesson(ctx, id)
}

// CreateLesson creates a lesson and attaches it to the chosen lesson plan
func (s *ContentService) CreateLesson(ctx context.Context, session *models.Session, form LessonForm) (*models.Lesson, error) {
	form.Title = strings.TrimSpace(form.Title)
	if err := validation.Struct(form); err != nil {
		return nil, err
	}
	client := userClient(s.client, session)
	lesson, err := client.CreateLesson(ctx, models.Lesson{Title: form.Title, Content: form.Content, VideoURL: form.VideoURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create lesson: %w", err)
	}
	if err := attach(ctx, client, form.LessonPlanID, lesson.ID, models.ContentLesson); err != nil {
		return lesson, err
	}
	return lesson, nil
}

// UpdateLesson updates a lesson
func (s *ContentService) UpdateLesson(ctx context.Context, session *models.Session, id string, form LessonForm) error {
	form.Title = strings.TrimSpace(form.Title)
	if err := validation.Struct(form); err != nil {
		return err
	}
	lesson := models.Lesson{Title: form.Title, Content: form.Content, VideoURL: form.VideoURL}
	if err := userClient(s.client, session).UpdateLesson(ctx, id, lesson); err != nil {
		return fmt.Errorf("failed to update lesson: %w", err)
	}
	return nil
}

// DeleteLesson deletes a lesson
func (s *ContentService) DeleteLesson(ctx context.Context, session *models.Session, id string) error {
	if err := userClient(s.client, session).DeleteLesson(ctx, id); err != nil {
		return fmt.Errorf("failed to delete lesson: %w", err)
	}
	return nil
}

// GetExercise returns an exercise
func (s *ContentService) GetExercise(ctx context.Context, session *models.Session, id string) (*models.Exercise, error) {
	return userClient(s.client, session).GetExercise(ctx, id)
}

// ListExercises returns every exercise, used by the list editor
func (s *ContentService) ListExercises(ctx context.Context, session *models.Session) ([]models.Exercise, error) {
	exercises, err := userClient(s.client, session).ListExercises(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list exercises: %w", err)
	}
	return exercises, nil
}

// CreateExercise builds, creates and attaches an exercise
func (s *ContentService) CreateExercise(ctx context.Context, session *models.Session, form ExerciseForm) (*models.Exercise, error) {
	ex, err := BuildExercise(form)
	if err != nil {
		return nil, err
	}
	client := userClient(s.client, session)
	created, err := client.CreateExercise(ctx, ex)
	if err != nil {
		return nil, fmt.Errorf("failed to create exercise: %w", err)
	}
	if err := attach(ctx, client, form.LessonPlanID, created.ID, models.ContentExercise); err != nil {
		return created, err
	}
	return created, nil
}

// UpdateExercise rebuilds the answer key and saves the exercise
func (s *ContentService) UpdateExercise(ctx context.Context, session *models.Session, id string, form ExerciseForm) error {
	ex, err := BuildExercise(form)
	if err != nil {
		return err
	}
	ex.ID = id
	if err := userClient(s.client, session).UpdateExercise(ctx, id, ex); err != nil {
		return fmt.Errorf("failed to update exercise: %w", err)
	}
	return nil
}

// DeleteExercise deletes an exercise
func (s *ContentService) DeleteExercise(ctx context.Context, session *models.Session, id string) error {
	if err := userClient(s.client, session).DeleteExercise(ctx, id); err != nil {
		return fmt.Errorf("failed to delete exercise: %w", err)
	}
	return nil
}

// GetExerciseList returns a list with its exercises hydrated
func (s *ContentService) GetExerciseList(ctx context.Context, session *models.Session, id string) (*models.ExerciseList, error) {
	client := userClient(s.client, session)
	list, err := client.GetExerciseList(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := hydrateList(ctx, client, list); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateExerciseList creates and attaches an exercise list
func (s *ContentService) CreateExerciseList(ctx context.Context, session *models.Session, form ExerciseListForm) (*models.ExerciseList, error) {
	form.Name = strings.TrimSpace(form.Name)
	if err := validation.Struct(form); err != nil {
		return nil, err
	}
	client := userClient(s.client, session)
	list, err := client.CreateExerciseList(ctx, models.ExerciseList{Name: form.Name, ExerciseIDs: form.ExerciseIDs, DueDate: form.DueDate})
	if err != nil {
		return nil, fmt.Errorf("failed to create exercise list: %w", err)
	}
	if err := attach(ctx, client, form.LessonPlanID, list.ID, models.ContentExerciseList); err != nil {
		return list, err
	}
	return list, nil
}

// UpdateExerciseList updates an exercise list
func (s *ContentService) UpdateExerciseList(ctx context.Context, session *models.Session, id string, form ExerciseListForm) error {
	form.Name = strings.TrimSpace(form.Name)
	if err := validation.Struct(form); err != nil {
		return err
	}
	list := models.ExerciseList{Name: form.Name, ExerciseIDs: form.ExerciseIDs, DueDate: form.DueDate}
	if err := userClient(s.client, session).UpdateExerciseList(ctx, id, list); err != nil {
		return fmt.Errorf("failed to update exercise list: %w", err)
	}
	return nil
}

// DeleteExerciseList deletes an exercise list
func (s *ContentService) DeleteExerciseList(ctx context.Context, session *models.Session, id string) error {
	if err := userClient(s.client, session).DeleteExerciseList(ctx, id); err != nil {
		return fmt.Errorf("failed to delete exercise list: %w", err)
	}
	return nil
}

// OwningLessonPlan returns the lesson plan a piece of content belongs to,
// or "" when it is not attached anywhere
func (s *ContentService) OwningLessonPlan(ctx context.Context, session *models.Session, contentID, contentType string) (string, error) {
	if !models.ValidContentType(contentType) {
		return "", fmt.Errorf("unknown content type %q", contentType)
	}
	assocs, err := userClient(s.client, session).Associations(ctx, contentID, contentType)
	if err != nil {
		if backend.IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve lesson plan: %w", err)
	}
	if len(assocs) == 0 {
		return "", nil
	}
	return assocs[0].LessonPlanID, nil
}

// Upload proxies a file to the backend and returns its public URL
func (s *ContentService) Upload(ctx context.Context, session *models.Session, filename string, r io.Reader) (string, error) {
	url, err := userClient(s.client, session).Upload(ctx, filename, r)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", filename, err)
	}
	return url, nil
}
