package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ExerciseType identifies the kind of question an exercise asks
type ExerciseType string

const (
	ExerciseOpen           ExerciseType = "open"
	ExerciseMultipleChoice ExerciseType = "multiple_choice"
	ExerciseTrueFalse      ExerciseType = "true_false"
)

// Valid reports whether t is one of the known exercise types
func (t ExerciseType) Valid() bool {
	switch t {
	case ExerciseOpen, ExerciseMultipleChoice, ExerciseTrueFalse:
		return true
	}
	return false
}

// TrueFalseOption is one statement of a true/false exercise
type TrueFalseOption struct {
	ID        string `json:"_id,omitempty"`
	Statement string `json:"statement"`
	Answer    bool   `json:"answer"`
}

// Exercise is a single question authored by a teacher.
// The backend sends a type-dependent "options" array; it is decoded into
// Choices for multiple_choice and TrueFalse for true_false exercises.
type Exercise struct {
	ID         string
	Statement  string
	Type       ExerciseType
	Answer     string // wire format, see grading.AnswerKey
	ShowAnswer bool
	Grade      float64 // maximum points
	Choices    []string
	TrueFalse  []TrueFalseOption
}

type exerciseWire struct {
	ID         string          `json:"id,omitempty"`
	Statement  string          `json:"statement"`
	Type       ExerciseType    `json:"type"`
	Answer     string          `json:"answer"`
	ShowAnswer bool            `json:"showAnswer"`
	Grade      float64         `json:"grade"`
	Options    json.RawMessage `json:"options,omitempty"`
}

// UnmarshalJSON decodes the options payload according to the exercise type
func (e *Exercise) UnmarshalJSON(data []byte) error {
	var w exerciseWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*e = Exercise{
		ID:         w.ID,
		Statement:  w.Statement,
		Type:       w.Type,
		Answer:     w.Answer,
		ShowAnswer: w.ShowAnswer,
		Grade:      w.Grade,
	}

	hasOptions := len(w.Options) > 0 && string(w.Options) != "null"

	switch w.Type {
	case ExerciseOpen:
		return nil
	case ExerciseMultipleChoice:
		if hasOptions {
			if err := json.Unmarshal(w.Options, &e.Choices); err != nil {
				return fmt.Errorf("exercise %s: decode multiple choice options: %w", w.ID, err)
			}
		}
		return nil
	case ExerciseTrueFalse:
		if hasOptions {
			if err := json.Unmarshal(w.Options, &e.TrueFalse); err != nil {
				return fmt.Errorf("exercise %s: decode true/false options: %w", w.ID, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("exercise %s: unknown type %q", w.ID, w.Type)
	}
}

// MarshalJSON encodes the exercise with the options variant matching its type
func (e Exercise) MarshalJSON() ([]byte, error) {
	w := exerciseWire{
		ID:         e.ID,
		Statement:  e.Statement,
		Type:       e.Type,
		Answer:     e.Answer,
		ShowAnswer: e.ShowAnswer,
		Grade:      e.Grade,
	}

	var err error
	switch e.Type {
	case ExerciseOpen:
		w.Options = json.RawMessage("[]")
	case ExerciseMultipleChoice:
		w.Options, err = json.Marshal(nonNil(e.Choices))
	case ExerciseTrueFalse:
		opts := e.TrueFalse
		if opts == nil {
			opts = []TrueFalseOption{}
		}
		w.Options, err = json.Marshal(opts)
	default:
		return nil, fmt.Errorf("exercise %s: unknown type %q", e.ID, e.Type)
	}
	if err != nil {
		return nil, err
	}

	return json.Marshal(w)
}

// OptionCount returns the number of selectable options for the exercise
func (e *Exercise) OptionCount() int {
	switch e.Type {
	case ExerciseMultipleChoice:
		return len(e.Choices)
	case ExerciseTrueFalse:
		return len(e.TrueFalse)
	}
	return 0
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ExerciseList groups exercises that are answered and graded together
type ExerciseList struct {
	ID          string     `json:"id,omitempty"`
	Name        string     `json:"name"`
	ExerciseIDs []string   `json:"exercises_ids"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Exercises   []Exercise `json:"exercises,omitempty"`
}

// MaxGrades returns each hydrated exercise's maximum points, keyed by exercise ID
func (l *ExerciseList) MaxGrades() map[string]float64 {
	grades := make(map[string]float64, len(l.Exercises))
	for _, ex := range l.Exercises {
		grades[ex.ID] = ex.Grade
	}
	return grades
}

// ListCompletion reports whether the current user finished a list and whether it is still open
type ListCompletion struct {
	Completed      bool `json:"completed"`
	DeadlinePassed bool `json:"deadlinePassed"`
}
