package models

// StudentAnswer is a student's submission record for one exercise or one exercise list
type StudentAnswer struct {
	ID         string    `json:"id"`
	User       UserRef   `json:"user_id"`
	FinalGrade *float64  `json:"final_grade,omitempty"`
	Answer     string    `json:"answer,omitempty"`
	Attempts   []Attempt `json:"attempts,omitempty"`
}

// IsGraded reports whether a teacher already corrected this submission
func (a *StudentAnswer) IsGraded() bool {
	return a.FinalGrade != nil
}

// AttemptFor returns the attempt matching exerciseID, if any
func (a *StudentAnswer) AttemptFor(exerciseID string) (*Attempt, bool) {
	for i := range a.Attempts {
		if a.Attempts[i].ExerciseID == exerciseID {
			return &a.Attempts[i], true
		}
	}
	return nil, false
}

// Attempt is one exercise answered within a list, per student
type Attempt struct {
	ID         string   `json:"id"`
	ExerciseID string   `json:"exercise_id"`
	Answer     string   `json:"answer"`
	Grade      *float64 `json:"grade,omitempty"`
}

// AttemptAnswer is what a student sends for one exercise of a list
type AttemptAnswer struct {
	ExerciseID string `json:"exercise_id"`
	Answer     string `json:"answer"`
}

// Float64 returns a pointer to v, convenient for optional grades
func Float64(v float64) *float64 {
	return &v
}
