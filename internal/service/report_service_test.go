package service

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edupanel/internal/models"
)

func gradebookFixture() *Gradebook {
	list, exercises := listFixture()
	list.Exercises = exercises
	answers := []models.StudentAnswer{
		{
			User:       models.UserRef{ID: "s1", Name: "Bia"},
			FinalGrade: models.Float64(7.5),
			Attempts: []models.Attempt{
				{ID: "at1", ExerciseID: "e1", Grade: models.Float64(3)},
				{ID: "at2", ExerciseID: "e2", Grade: models.Float64(4.5)},
			},
		},
		{
			User:     models.UserRef{ID: "s2", Name: "João"},
			Attempts: []models.Attempt{{ID: "at3", ExerciseID: "e2"}},
		},
	}
	return NewGradebook(list, answers, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
}

func TestNewGradebook(t *testing.T) {
	gb := gradebookFixture()
	assert.Equal(t, []string{"2+2?", "Pick the prime"}, gb.Exercises)
	assert.Equal(t, []float64{4, 6}, gb.MaxGrades)
	require.Len(t, gb.Rows, 2)

	assert.Equal(t, "3", gradeCell(gb.Rows[0].Grades[0]))
	assert.Equal(t, "4,5", gradeCell(gb.Rows[0].Grades[1]))
	assert.Equal(t, "7,5", gradeCell(gb.Rows[0].FinalGrade))

	assert.Equal(t, "-", gradeCell(gb.Rows[1].Grades[0]))
	assert.Equal(t, "-", gradeCell(gb.Rows[1].Grades[1]))
	assert.Nil(t, gb.Rows[1].FinalGrade)
}

func TestGradebookWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, gradebookFixture().WriteJSON(&buf))

	var decoded Gradebook
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "Week 1", decoded.ListName)
	require.Len(t, decoded.Rows, 2)
	assert.Nil(t, decoded.Rows[1].Grades[0])
}

func TestGradebookWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, gradebookFixture().WritePDF(&buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}
