package handlers

import (
	"edupanel/internal/grading"
	"edupanel/internal/models"
	"edupanel/internal/service"
)

// Page carries what the layout needs on every page
type Page struct {
	Title     string
	Session   *models.Session
	CSRFToken string
	Flash     grading.Notice
	Error     string
}

type LoginViewData struct {
	Page
	Email string
}

type RegisterViewData struct {
	Page
	Form   service.RegisterForm
	Errors map[string]string
}

type DashboardViewData struct {
	Page
	LessonPlans []models.LessonPlan
}

type LessonPlanViewData struct {
	Page
	Contents *service.PlanContents
	Form     service.LessonPlanForm
	Errors   map[string]string
}

type LessonEditorViewData struct {
	Page
	LessonID string
	Form     service.LessonForm
	Errors   map[string]string
}

type ExerciseEditorViewData struct {
	Page
	ExerciseID string
	Form       service.ExerciseForm
	Errors     map[string]string
}

type ListEditorViewData struct {
	Page
	ListID    string
	Form      service.ExerciseListForm
	Exercises []models.Exercise
	Selected  map[string]bool
	Errors    map[string]string
}

// StudentRow is one entry of the roster sidebar
type StudentRow struct {
	Index  int
	Name   string
	Graded bool
	Grade  string
	Active bool
}

// OptionView is one option of an answered exercise as rendered for correction
type OptionView struct {
	Key      string
	Text     string
	Selected bool
	// Answer is the student's true/false choice: "true", "false" or "" when unanswered
	Answer  string
	Correct bool
	Wrong   bool
}

// AnswerView is a student's answer laid out against the exercise
type AnswerView struct {
	Exercise models.Exercise
	Text     string
	Options  []OptionView
}

type ExerciseCorrectionViewData struct {
	Page
	Exercise      models.Exercise
	Roster        []StudentRow
	Selected      int
	StudentID     string
	StudentName   string
	Answer        AnswerView
	Grade         string
	Editing       bool
	IsLast        bool
	TotalPossible string
	Graded        int
	Total         int
}

// ListQuestionView is one exercise of a list correction with the student's attempt
type ListQuestionView struct {
	Index     int
	Answer    AnswerView
	Attempted bool
	Grade     string
	Error     string
	Active    bool
}

type ListCorrectionViewData struct {
	Page
	List          models.ExerciseList
	Roster        []StudentRow
	Selected      int
	StudentID     string
	StudentName   string
	Questions     []ListQuestionView
	Question      int
	Editing       bool
	IsLast        bool
	CurrentTotal  string
	TotalPossible string
	Graded        int
	Total         int
}

type JournalViewData struct {
	Page
	ScopeID string
	Entries []models.JournalEntry
}

// StatementView is one true/false statement of an answer form
type StatementView struct {
	Key  string
	Text string
}

// QuestionForm is an exercise as presented to a student answering it
type QuestionForm struct {
	Exercise   models.Exercise
	Statements []StatementView
	Error      string
}

type StudentExerciseViewData struct {
	Page
	Question QuestionForm
}

type StudentListViewData struct {
	Page
	List       models.ExerciseList
	Completion models.ListCompletion
	Questions  []QuestionForm
}

type ShopViewData struct {
	Page
	Shop *service.Shop
}

type AvatarsViewData struct {
	Page
	Avatars []models.Avatar
	Form    service.AvatarForm
	Errors  map[string]string
}

type RankingViewData struct {
	Page
	Ranking []models.RankingEntry
}

// answerView lays out a student's wire answer against the exercise options
func answerView(ex models.Exercise, answer string) AnswerView {
	view := AnswerView{Exercise: ex}
	switch ex.Type {
	case models.ExerciseOpen:
		view.Text = answer

	case models.ExerciseMultipleChoice:
		marks := grading.ChoiceMarks(ex, answer)
		for i, choice := range ex.Choices {
			key := grading.EncodeMultipleChoice(i)
			view.Options = append(view.Options, OptionView{
				Key:      key,
				Text:     choice,
				Selected: key == answer,
				Correct:  marks[i] == grading.MarkCorrect,
				Wrong:    marks[i] == grading.MarkWrongSelection,
			})
		}

	case models.ExerciseTrueFalse:
		marks := grading.TrueFalseMarks(ex, answer)
		selections := grading.DecodeTrueFalse(answer, ex.TrueFalse)
		for i, opt := range ex.TrueFalse {
			key := grading.OptionKey(i, opt)
			option := OptionView{
				Key:     key,
				Text:    opt.Statement,
				Correct: marks[i] == grading.MarkCorrect,
				Wrong:   marks[i] == grading.MarkWrongSelection,
			}
			if value, ok := selections[key]; ok {
				option.Selected = true
				option.Answer = "false"
				if value {
					option.Answer = "true"
				}
			}
			view.Options = append(view.Options, option)
		}
	}
	return view
}

func rosterRows(students []models.StudentAnswer, selected int) []StudentRow {
	rows := make([]StudentRow, len(students))
	for i, s := range students {
		rows[i] = StudentRow{Index: i, Name: s.User.Name, Graded: s.IsGraded(), Active: i == selected}
		if s.FinalGrade != nil {
			rows[i].Grade = grading.FormatGrade(*s.FinalGrade)
		}
	}
	return rows
}

func questionForm(ex models.Exercise) QuestionForm {
	q := QuestionForm{Exercise: ex}
	for i, opt := range ex.TrueFalse {
		q.Statements = append(q.Statements, StatementView{Key: grading.OptionKey(i, opt), Text: opt.Statement})
	}
	return q
}
