package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/sync/errgroup"

	"edupanel/internal/backend"
	"edupanel/internal/grading"
	"edupanel/internal/models"
)

// GradebookRow is one student's line in a gradebook
type GradebookRow struct {
	StudentID   string     `json:"student_id"`
	StudentName string     `json:"student_name"`
	Grades      []*float64 `json:"grades"` // per exercise, in list order; nil when ungraded
	FinalGrade  *float64   `json:"final_grade"`
}

// Gradebook is the grade summary of an exercise list
type Gradebook struct {
	ListID      string         `json:"list_id"`
	ListName    string         `json:"list_name"`
	Exercises   []string       `json:"exercises"`
	MaxGrades   []float64      `json:"max_grades"`
	Rows        []GradebookRow `json:"rows"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// NewGradebook arranges a hydrated list and its submissions into a gradebook
func NewGradebook(list models.ExerciseList, answers []models.StudentAnswer, now time.Time) *Gradebook {
	gb := &Gradebook{
		ListID:      list.ID,
		ListName:    list.Name,
		Exercises:   make([]string, len(list.Exercises)),
		MaxGrades:   make([]float64, len(list.Exercises)),
		Rows:        make([]GradebookRow, 0, len(answers)),
		GeneratedAt: now,
	}
	for i, ex := range list.Exercises {
		gb.Exercises[i] = ex.Statement
		gb.MaxGrades[i] = ex.Grade
	}
	for _, a := range answers {
		row := GradebookRow{
			StudentID:   a.User.ID,
			StudentName: a.User.Name,
			Grades:      make([]*float64, len(list.Exercises)),
			FinalGrade:  a.FinalGrade,
		}
		for i, ex := range list.Exercises {
			if attempt, ok := a.AttemptFor(ex.ID); ok {
				row.Grades[i] = attempt.Grade
			}
		}
		gb.Rows = append(gb.Rows, row)
	}
	return gb
}

func gradeCell(v *float64) string {
	if v == nil {
		return "-"
	}
	return grading.FormatGrade(*v)
}

// WriteJSON writes the gradebook as indented JSON
func (gb *Gradebook) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(gb); err != nil {
		return fmt.Errorf("failed to encode gradebook: %w", err)
	}
	return nil
}

// WritePDF renders the gradebook as an A4 table
func (gb *Gradebook) WritePDF(w io.Writer) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(gb.ListName, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, tr(gb.ListName))
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 8, "Generated "+gb.GeneratedAt.Format("2006-01-02 15:04"))
	pdf.Ln(12)

	nameWidth := 60.0
	colWidth := 18.0
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(nameWidth, 8, "Student", "1", 0, "L", false, 0, "")
	for i := range gb.Exercises {
		pdf.CellFormat(colWidth, 8, fmt.Sprintf("Q%d (%s)", i+1, grading.FormatGrade(gb.MaxGrades[i])), "1", 0, "C", false, 0, "")
	}
	pdf.CellFormat(colWidth, 8, "Final", "1", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, row := range gb.Rows {
		pdf.CellFormat(nameWidth, 7, tr(row.StudentName), "1", 0, "L", false, 0, "")
		for _, g := range row.Grades {
			pdf.CellFormat(colWidth, 7, gradeCell(g), "1", 0, "C", false, 0, "")
		}
		pdf.CellFormat(colWidth, 7, gradeCell(row.FinalGrade), "1", 1, "C", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "", 9)
	for i, statement := range gb.Exercises {
		pdf.MultiCell(0, 5, tr(fmt.Sprintf("Q%d. %s", i+1, statement)), "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render gradebook PDF: %w", err)
	}
	return nil
}

// ReportService builds gradebooks for exercise lists
type ReportService struct {
	client *backend.Client
	now    func() time.Time
}

// NewReportService creates a new report service
func NewReportService(client *backend.Client) *ReportService {
	return &ReportService{client: client, now: time.Now}
}

// Gradebook loads a list with its submissions and arranges them into a gradebook
func (s *ReportService) Gradebook(ctx context.Context, session *models.Session, listID string) (*Gradebook, error) {
	client := userClient(s.client, session)

	var list *models.ExerciseList
	var answers []models.StudentAnswer
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
		answers, err = client.ExerciseListAnswers(gctx, listID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load gradebook: %w", err)
	}
	return NewGradebook(*list, answers, s.now()), nil
}
