package backend

import (
	"context"
	"net/http"

	"edupanel/internal/models"
)

// ExerciseAnswers returns every student's submission for an exercise
func (c *Client) ExerciseAnswers(ctx context.Context, exerciseID string) ([]models.StudentAnswer, error) {
	var out []models.StudentAnswer
	err := c.t.do(ctx, http.MethodGet, "/user-progress/exercise/"+escape(exerciseID)+"/answers", nil, nil, &out)
	return out, err
}

// ExerciseListAnswers returns every student's attempts for an exercise list
func (c *Client) ExerciseListAnswers(ctx context.Context, listID string) ([]models.StudentAnswer, error) {
	var out []models.StudentAnswer
	err := c.t.do(ctx, http.MethodGet, "/user-progress/exercise-list/"+escape(listID)+"/answers", nil, nil, &out)
	return out, err
}

// UpdateAttemptGrade persists the grade of one attempt within a list
func (c *Client) UpdateAttemptGrade(ctx context.Context, attemptID string, grade float64) error {
	body := map[string]float64{"grade": grade}
	return c.t.do(ctx, http.MethodPatch, "/user-progress/attempts/"+escape(attemptID)+"/grade", nil, body, nil)
}

// SubmitExerciseAnswer sends the current student's answer for one exercise
func (c *Client) SubmitExerciseAnswer(ctx context.Context, exerciseID, answer string) (*models.StudentAnswer, error) {
	body := map[string]string{"answer": answer}
	var out models.StudentAnswer
	if err := c.t.do(ctx, http.MethodPost, "/user-progress/exercise/"+escape(exerciseID)+"/answer", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitListAnswers sends the current student's answers for every exercise of a list
func (c *Client) SubmitListAnswers(ctx context.Context, listID string, answers []models.AttemptAnswer) (*models.StudentAnswer, error) {
	body := map[string][]models.AttemptAnswer{"answers": answers}
	var out models.StudentAnswer
	if err := c.t.do(ctx, http.MethodPost, "/user-progress/exercise-list/"+escape(listID)+"/answers", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ranking returns the XP ranking computed by the backend
func (c *Client) Ranking(ctx context.Context) ([]models.RankingEntry, error) {
	var out []models.RankingEntry
	err := c.t.do(ctx, http.MethodGet, "/user-progress/ranking", nil, nil, &out)
	return out, err
}
