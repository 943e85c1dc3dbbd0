package grading

import "edupanel/internal/models"

// ExercisePatch is the local result of a successful individual correction.
type ExercisePatch struct {
	StudentID  string
	FinalGrade float64
}

// ListPatch is the local result of a successful list correction.
// Grades is keyed by attempt id.
type ListPatch struct {
	StudentID string
	Grades    map[string]float64
	MaxTotal  float64
}

// NormalizedFinalGrade scales the attempt grade sum to a 0-10 grade.
// It is 0 when nothing can be scored.
func NormalizedFinalGrade(attemptSum, maxTotal float64) float64 {
	if maxTotal <= 0 {
		return 0
	}
	return attemptSum / maxTotal * 10
}

// ApplyExercisePatch returns a copy of students with the patched student's
// final grade replaced. The input slice is not modified.
func ApplyExercisePatch(students []models.StudentAnswer, p ExercisePatch) []models.StudentAnswer {
	out := make([]models.StudentAnswer, len(students))
	copy(out, students)
	for i := range out {
		if out[i].User.ID == p.StudentID {
			out[i].FinalGrade = models.Float64(p.FinalGrade)
		}
	}
	return out
}

// ApplyListPatch returns a copy of students where the patched student's attempt
// grades are replaced and the final grade recomputed from all graded attempts.
// The input slice and its attempts are not modified.
func ApplyListPatch(students []models.StudentAnswer, p ListPatch) []models.StudentAnswer {
	out := make([]models.StudentAnswer, len(students))
	copy(out, students)
	for i := range out {
		if out[i].User.ID != p.StudentID {
			continue
		}
		attempts := make([]models.Attempt, len(out[i].Attempts))
		copy(attempts, out[i].Attempts)

		sum := 0.0
		for j := range attempts {
			if g, ok := p.Grades[attempts[j].ID]; ok {
				attempts[j].Grade = models.Float64(g)
			}
			if attempts[j].Grade != nil {
				sum += *attempts[j].Grade
			}
		}
		out[i].Attempts = attempts
		out[i].FinalGrade = models.Float64(NormalizedFinalGrade(sum, p.MaxTotal))
	}
	return out
}
