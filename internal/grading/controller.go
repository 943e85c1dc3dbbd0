package grading

import "edupanel/internal/models"

// Transient strings accepted while the user is still typing a grade.
var transientInputs = map[string]bool{"": true, ",": true, ".": true}

// AcceptGradeInput reports whether a typed grade may replace the field value.
// The value must parse to a number within [0, maxGrade], unless it is one of
// the transient strings "", "," or ".".
func AcceptGradeInput(input string, maxGrade float64) bool {
	if transientInputs[input] {
		return true
	}
	v, ok := parseStrict(input)
	return ok && v >= 0 && v <= maxGrade
}

// ClampGrade parses input (malformed input counts as 0), clamps it into
// [0, maxGrade] and re-formats it with a comma decimal separator.
func ClampGrade(input string, maxGrade float64) string {
	v := ParseGrade(input)
	if v < 0 {
		v = 0
	}
	if v > maxGrade {
		v = maxGrade
	}
	return FormatGrade(v)
}

func clampIndex(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

func countGraded(students []models.StudentAnswer) int {
	graded := 0
	for i := range students {
		if students[i].IsGraded() {
			graded++
		}
	}
	return graded
}

// ExerciseCorrection holds the grading state for one exercise across its students.
type ExerciseCorrection struct {
	Exercise   models.Exercise
	Students   []models.StudentAnswer
	Selected   int
	Grade      string
	Editing    bool
	Submitting bool
	Notice     Notice
}

// NewExerciseCorrection creates the state with the first student selected.
func NewExerciseCorrection(ex models.Exercise, students []models.StudentAnswer) *ExerciseCorrection {
	c := &ExerciseCorrection{Exercise: ex}
	c.SetRoster(students)
	return c
}

// SetRoster replaces the loaded students and re-derives the editable defaults.
func (c *ExerciseCorrection) SetRoster(students []models.StudentAnswer) {
	c.Students = students
	c.Selected = clampIndex(c.Selected, len(students))
	c.sync()
}

// SelectStudent changes the student being graded.
func (c *ExerciseCorrection) SelectStudent(i int) {
	c.Selected = clampIndex(i, len(c.Students))
	c.sync()
}

// NextStudent advances to the next student, stopping at the last one.
func (c *ExerciseCorrection) NextStudent() { c.SelectStudent(c.Selected + 1) }

// PrevStudent goes back to the previous student, stopping at the first one.
func (c *ExerciseCorrection) PrevStudent() { c.SelectStudent(c.Selected - 1) }

// Current returns the selected student's submission.
func (c *ExerciseCorrection) Current() (*models.StudentAnswer, bool) {
	if len(c.Students) == 0 {
		return nil, false
	}
	return &c.Students[c.Selected], true
}

// IsLast reports whether the selected student is the last one.
func (c *ExerciseCorrection) IsLast() bool {
	return c.Selected >= len(c.Students)-1
}

// Edit unlocks the grade field regardless of the graded state.
func (c *ExerciseCorrection) Edit() { c.Editing = true }

// SetGrade applies a typed grade. Rejected input leaves the field unchanged.
func (c *ExerciseCorrection) SetGrade(input string) bool {
	if !AcceptGradeInput(input, c.Exercise.Grade) {
		return false
	}
	c.Grade = input
	return true
}

// TotalPossible is the exercise's maximum points.
func (c *ExerciseCorrection) TotalPossible() float64 { return c.Exercise.Grade }

// CurrentTotal is the numeric value of the grade field.
func (c *ExerciseCorrection) CurrentTotal() float64 { return ParseGrade(c.Grade) }

// Progress returns how many students are graded out of the total.
func (c *ExerciseCorrection) Progress() (graded, total int) {
	return countGraded(c.Students), len(c.Students)
}

func (c *ExerciseCorrection) sync() {
	student, ok := c.Current()
	if ok && student.IsGraded() {
		c.Editing = false
		c.Grade = FormatGrade(*student.FinalGrade)
		return
	}
	c.Editing = true
	c.Grade = "0"
}

// ListCorrection holds the grading state for an exercise list across its students.
// List.Exercises must be hydrated.
type ListCorrection struct {
	List           models.ExerciseList
	Students       []models.StudentAnswer
	Selected       int
	Question       int
	ExerciseGrades map[string]string
	Editing        bool
	Submitting     bool
	Notice         Notice
}

// NewListCorrection creates the state with the first student and question selected.
func NewListCorrection(list models.ExerciseList, students []models.StudentAnswer) *ListCorrection {
	c := &ListCorrection{List: list}
	c.SetRoster(students)
	return c
}

// SetRoster replaces the loaded students and re-derives the editable defaults.
func (c *ListCorrection) SetRoster(students []models.StudentAnswer) {
	c.Students = students
	c.Selected = clampIndex(c.Selected, len(students))
	c.sync()
}

// SelectStudent changes the student being graded.
func (c *ListCorrection) SelectStudent(i int) {
	c.Selected = clampIndex(i, len(c.Students))
	c.sync()
}

// NextStudent advances to the next student, stopping at the last one.
func (c *ListCorrection) NextStudent() { c.SelectStudent(c.Selected + 1) }

// PrevStudent goes back to the previous student, stopping at the first one.
func (c *ListCorrection) PrevStudent() { c.SelectStudent(c.Selected - 1) }

// SelectQuestion changes the exercise shown within the list.
func (c *ListCorrection) SelectQuestion(i int) {
	c.Question = clampIndex(i, len(c.List.Exercises))
}

// NextQuestion advances to the next exercise, stopping at the last one.
func (c *ListCorrection) NextQuestion() { c.SelectQuestion(c.Question + 1) }

// PrevQuestion goes back to the previous exercise, stopping at the first one.
func (c *ListCorrection) PrevQuestion() { c.SelectQuestion(c.Question - 1) }

// Current returns the selected student's submission.
func (c *ListCorrection) Current() (*models.StudentAnswer, bool) {
	if len(c.Students) == 0 {
		return nil, false
	}
	return &c.Students[c.Selected], true
}

// CurrentExercise returns the exercise at the selected question.
func (c *ListCorrection) CurrentExercise() (*models.Exercise, bool) {
	if len(c.List.Exercises) == 0 {
		return nil, false
	}
	return &c.List.Exercises[c.Question], true
}

// IsLast reports whether the selected student is the last one.
func (c *ListCorrection) IsLast() bool {
	return c.Selected >= len(c.Students)-1
}

// Edit unlocks the grade fields regardless of the graded state.
func (c *ListCorrection) Edit() { c.Editing = true }

func (c *ListCorrection) exercise(id string) (models.Exercise, bool) {
	for _, ex := range c.List.Exercises {
		if ex.ID == id {
			return ex, true
		}
	}
	return models.Exercise{}, false
}

// SetExerciseGrade applies a typed grade for one exercise.
// Rejected input, or an exercise outside the list, leaves the fields unchanged.
func (c *ListCorrection) SetExerciseGrade(exerciseID, input string) bool {
	ex, ok := c.exercise(exerciseID)
	if !ok || !AcceptGradeInput(input, ex.Grade) {
		return false
	}
	c.ExerciseGrades[exerciseID] = input
	return true
}

// BlurExerciseGrade clamps and re-formats the field when it loses focus.
func (c *ListCorrection) BlurExerciseGrade(exerciseID string) {
	ex, ok := c.exercise(exerciseID)
	if !ok {
		return
	}
	c.ExerciseGrades[exerciseID] = ClampGrade(c.ExerciseGrades[exerciseID], ex.Grade)
}

// TotalPossible is the sum of every exercise's maximum points.
func (c *ListCorrection) TotalPossible() float64 {
	total := 0.0
	for _, ex := range c.List.Exercises {
		total += ex.Grade
	}
	return total
}

// CurrentTotal is the sum of the numeric values of all grade fields.
func (c *ListCorrection) CurrentTotal() float64 {
	total := 0.0
	for _, ex := range c.List.Exercises {
		total += ParseGrade(c.ExerciseGrades[ex.ID])
	}
	return total
}

// Progress returns how many students are graded out of the total.
func (c *ListCorrection) Progress() (graded, total int) {
	return countGraded(c.Students), len(c.Students)
}

func (c *ListCorrection) sync() {
	c.ExerciseGrades = make(map[string]string, len(c.List.Exercises))
	student, ok := c.Current()
	graded := ok && student.IsGraded()
	c.Editing = !graded

	for _, ex := range c.List.Exercises {
		c.ExerciseGrades[ex.ID] = "0"
		if !graded {
			continue
		}
		if attempt, found := student.AttemptFor(ex.ID); found && attempt.Grade != nil {
			c.ExerciseGrades[ex.ID] = FormatGrade(*attempt.Grade)
		}
	}
}
