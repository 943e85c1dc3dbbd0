package backend

import (
	"context"
	"net/http"
	"net/url"

	"edupanel/internal/models"
)

// Lesson plans

func (c *Client) ListLessonPlans(ctx context.Context) ([]models.LessonPlan, error) {
	var out []models.LessonPlan
	err := c.t.do(ctx, http.MethodGet, "/lesson-plans", nil, nil, &out)
	return out, err
}

func (c *Client) GetLessonPlan(ctx context.Context, id string) (*models.LessonPlan, error) {
	var out models.LessonPlan
	if err := c.t.do(ctx, http.MethodGet, "/lesson-plans/"+escape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateLessonPlan(ctx context.Context, plan models.LessonPlan) (*models.LessonPlan, error) {
	var out models.LessonPlan
	if err := c.t.do(ctx, http.MethodPost, "/lesson-plans", nil, plan, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateLessonPlan(ctx context.Context, id string, plan models.LessonPlan) error {
	return c.t.do(ctx, http.MethodPatch, "/lesson-plans/"+escape(id), nil, plan, nil)
}

func (c *Client) DeleteLessonPlan(ctx context.Context, id string) error {
	return c.t.do(ctx, http.MethodDelete, "/lesson-plans/"+escape(id), nil, nil, nil)
}

// LessonPlanContents lists the content attached to a lesson plan
func (c *Client) LessonPlanContents(ctx context.Context, id string) ([]models.ContentAssociation, error) {
	var out []models.ContentAssociation
	err := c.t.do(ctx, http.MethodGet, "/lesson-plans/"+escape(id)+"/contents", nil, nil, &out)
	return out, err
}

// AttachContent associates a piece of content with a lesson plan
func (c *Client) AttachContent(ctx context.Context, assoc models.ContentAssociation) error {
	return c.t.do(ctx, http.MethodPost, "/lesson-plan-contents", nil, assoc, nil)
}

// Associations resolves which lesson plans own a piece of content
func (c *Client) Associations(ctx context.Context, contentID, contentType string) ([]models.ContentAssociation, error) {
	q := url.Values{}
	q.Set("content_id", contentID)
	q.Set("content_type", contentType)
	var out []models.ContentAssociation
	err := c.t.do(ctx, http.MethodGet, "/lesson-plan-contents/associations", q, nil, &out)
	return out, err
}

// Lessons

func (c *Client) ListLessons(ctx context.Context) ([]models.Lesson, error) {
	var out []models.Lesson
	err := c.t.do(ctx, http.MethodGet, "/lessons", nil, nil, &out)
	return out, err
}

func (c *Client) GetLesson(ctx context.Context, id string) (*models.Lesson, error) {
	var out models.Lesson
	if err := c.t.do(ctx, http.MethodGet, "/lessons/"+escape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateLesson(ctx context.Context, lesson models.Lesson) (*models.Lesson, error) {
	var out models.Lesson
	if err := c.t.do(ctx, http.MethodPost, "/lessons", nil, lesson, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateLesson(ctx context.Context, id string, lesson models.Lesson) error {
	return c.t.do(ctx, http.MethodPatch, "/lessons/"+escape(id), nil, lesson, nil)
}

func (c *Client) DeleteLesson(ctx context.Context, id string) error {
	return c.t.do(ctx, http.MethodDelete, "/lessons/"+escape(id), nil, nil, nil)
}

// Exercises

func (c *Client) ListExercises(ctx context.Context) ([]models.Exercise, error) {
	var out []models.Exercise
	err := c.t.do(ctx, http.MethodGet, "/exercises", nil, nil, &out)
	return out, err
}

func (c *Client) GetExercise(ctx context.Context, id string) (*models.Exercise, error) {
	var out models.Exercise
	if err := c.t.do(ctx, http.MethodGet, "/exercises/"+escape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateExercise(ctx context.Context, ex models.Exercise) (*models.Exercise, error) {
	var out models.Exercise
	if err := c.t.do(ctx, http.MethodPost, "/exercises", nil, ex, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateExercise(ctx context.Context, id string, ex models.Exercise) error {
	return c.t.do(ctx, http.MethodPatch, "/exercises/"+escape(id), nil, ex, nil)
}

func (c *Client) DeleteExercise(ctx context.Context, id string) error {
	return c.t.do(ctx, http.MethodDelete, "/exercises/"+escape(id), nil, nil, nil)
}

// TeacherCorrectionRequest is the body of PATCH /exercises/{id}/teacher-correction
type TeacherCorrectionRequest struct {
	UserID     string  `json:"user_id"`
	FinalGrade float64 `json:"final_grade"`
	Points     float64 `json:"points"`
}

// TeacherCorrection persists one student's grade on one exercise
func (c *Client) TeacherCorrection(ctx context.Context, exerciseID, studentID string, grade, points float64) error {
	body := TeacherCorrectionRequest{UserID: studentID, FinalGrade: grade, Points: points}
	return c.t.do(ctx, http.MethodPatch, "/exercises/"+escape(exerciseID)+"/teacher-correction", nil, body, nil)
}

// Exercise lists

func (c *Client) ListExerciseLists(ctx context.Context) ([]models.ExerciseList, error) {
	var out []models.ExerciseList
	err := c.t.do(ctx, http.MethodGet, "/exercise_lists", nil, nil, &out)
	return out, err
}

func (c *Client) GetExerciseList(ctx context.Context, id string) (*models.ExerciseList, error) {
	var out models.ExerciseList
	if err := c.t.do(ctx, http.MethodGet, "/exercise_lists/"+escape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateExerciseList(ctx context.Context, list models.ExerciseList) (*models.ExerciseList, error) {
	var out models.ExerciseList
	if err := c.t.do(ctx, http.MethodPost, "/exercise_lists", nil, list, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateExerciseList(ctx context.Context, id string, list models.ExerciseList) error {
	return c.t.do(ctx, http.MethodPatch, "/exercise_lists/"+escape(id), nil, list, nil)
}

func (c *Client) DeleteExerciseList(ctx context.Context, id string) error {
	return c.t.do(ctx, http.MethodDelete, "/exercise_lists/"+escape(id), nil, nil, nil)
}

// ListCompletion reports whether the current student finished the list and whether its deadline passed
func (c *Client) ListCompletion(ctx context.Context, id string) (*models.ListCompletion, error) {
	var out models.ListCompletion
	if err := c.t.do(ctx, http.MethodGet, "/exercise_lists/"+escape(id)+"/completed", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
