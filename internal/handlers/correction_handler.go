package handlers

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"edupanel/internal/grading"
	"edupanel/internal/models"
	"edupanel/internal/service"
)

// CorrectionHandler serves the teacher grading screens
type CorrectionHandler struct {
	correctionService *service.CorrectionService
	reportService     *service.ReportService
	middleware        *Middleware
	templates         *template.Template
}

// NewCorrectionHandler creates a new correction handler
func NewCorrectionHandler(correctionService *service.CorrectionService, reportService *service.ReportService, middleware *Middleware, templates *template.Template) *CorrectionHandler {
	return &CorrectionHandler{
		correctionService: correctionService,
		reportService:     reportService,
		middleware:        middleware,
		templates:         templates,
	}
}

func (h *CorrectionHandler) page(w http.ResponseWriter, r *http.Request, title string) Page {
	return Page{
		Title:     title,
		Session:   GetSessionFromContext(r.Context()),
		CSRFToken: h.middleware.CSRFToken(r),
		Flash:     readFlash(w, r),
	}
}

// studentIndex finds the roster position of studentID
func studentIndex(students []models.StudentAnswer, studentID string) (int, bool) {
	for i := range students {
		if students[i].User.ID == studentID {
			return i, true
		}
	}
	return 0, false
}

func correctionURL(base string, student, question int, edit bool) string {
	q := url.Values{}
	q.Set("student", strconv.Itoa(student))
	if question > 0 {
		q.Set("question", strconv.Itoa(question))
	}
	if edit {
		q.Set("edit", "1")
	}
	return base + "?" + q.Encode()
}

// ShowExerciseCorrection renders the individual correction screen
func (h *CorrectionHandler) ShowExerciseCorrection(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	c, err := h.correctionService.LoadExercise(r.Context(), session, r.PathValue("id"))
	if err != nil {
		respondWithBackendError(w, "Error loading exercise correction", err)
		return
	}

	c.SelectStudent(queryInt(r, "student"))
	if r.URL.Query().Get("edit") == "1" {
		c.Edit()
	}

	data := h.exerciseView(h.page(w, r, "Correction - EduPanel"), c)
	renderTemplate(w, h.templates, "correction_exercise.tmpl", http.StatusOK, data)
}

// SubmitExerciseCorrection saves the grade typed for one student
func (h *CorrectionHandler) SubmitExerciseCorrection(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "", err)
		return
	}

	session := GetSessionFromContext(r.Context())
	exerciseID := r.PathValue("id")
	c, err := h.correctionService.LoadExercise(r.Context(), session, exerciseID)
	if err != nil {
		respondWithBackendError(w, "Error loading exercise correction", err)
		return
	}

	idx, ok := studentIndex(c.Students, r.FormValue("student_id"))
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Unknown student", "", nil)
		return
	}
	c.SelectStudent(idx)
	c.Edit()

	if !c.SetGrade(r.FormValue("grade")) {
		page := h.page(w, r, "Correction - EduPanel")
		page.Error = fmt.Sprintf("Grade must be a number between 0 and %s", grading.FormatGrade(c.TotalPossible()))
		data := h.exerciseView(page, c)
		data.Grade = r.FormValue("grade")
		renderTemplate(w, h.templates, "correction_exercise.tmpl", http.StatusUnprocessableEntity, data)
		return
	}

	goToNext := r.FormValue("action") == "save_next"
	if err := h.correctionService.SubmitExercise(r.Context(), session, c, goToNext); err != nil {
		h.renderSubmitError(w, r, err, func(page Page) {
			renderTemplate(w, h.templates, "correction_exercise.tmpl", submitErrorStatus(err), h.exerciseView(page, c))
		})
		return
	}

	setFlash(w, r, c.Notice)
	http.Redirect(w, r, correctionURL("/teacher/exercises/"+url.PathEscape(exerciseID)+"/correction", c.Selected, 0, false), http.StatusSeeOther)
}

func submitErrorStatus(err error) int {
	switch {
	case errors.Is(err, grading.ErrSubmitting):
		return http.StatusConflict
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}
	status, _ := backendStatus(err)
	return status
}

// renderSubmitError re-renders the correction screen with the failure explained.
// The typed grades stay in place so the teacher can retry.
func (h *CorrectionHandler) renderSubmitError(w http.ResponseWriter, r *http.Request, err error, render func(Page)) {
	page := h.page(w, r, "Correction - EduPanel")
	switch {
	case errors.Is(err, grading.ErrSubmitting):
		page.Error = "This grade is already being saved"
	case errors.Is(err, grading.ErrNoStudent):
		page.Error = "There are no students to grade"
	default:
		log.Printf("Error saving correction: %v", err)
		page.Error = "Failed to save grade, please try again"
	}
	render(page)
}

func (h *CorrectionHandler) exerciseView(page Page, c *grading.ExerciseCorrection) ExerciseCorrectionViewData {
	graded, total := c.Progress()
	data := ExerciseCorrectionViewData{
		Page:          page,
		Exercise:      c.Exercise,
		Roster:        rosterRows(c.Students, c.Selected),
		Selected:      c.Selected,
		Grade:         c.Grade,
		Editing:       c.Editing,
		IsLast:        c.IsLast(),
		TotalPossible: grading.FormatGrade(c.TotalPossible()),
		Graded:        graded,
		Total:         total,
	}
	if student, ok := c.Current(); ok {
		data.StudentID = student.User.ID
		data.StudentName = student.User.Name
		data.Answer = answerView(c.Exercise, student.Answer)
	}
	return data
}

// ShowListCorrection renders the list correction screen
func (h *CorrectionHandler) ShowListCorrection(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	c, err := h.correctionService.LoadList(r.Context(), session, r.PathValue("id"))
	if err != nil {
		respondWithBackendError(w, "Error loading list correction", err)
		return
	}

	c.SelectStudent(queryInt(r, "student"))
	c.SelectQuestion(queryInt(r, "question"))
	if r.URL.Query().Get("edit") == "1" {
		c.Edit()
	}

	data := h.listView(h.page(w, r, "List correction - EduPanel"), c, nil)
	renderTemplate(w, h.templates, "correction_list.tmpl", http.StatusOK, data)
}

// SubmitListCorrection saves the per-exercise grades typed for one student
func (h *CorrectionHandler) SubmitListCorrection(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "", err)
		return
	}

	session := GetSessionFromContext(r.Context())
	listID := r.PathValue("id")
	c, err := h.correctionService.LoadList(r.Context(), session, listID)
	if err != nil {
		respondWithBackendError(w, "Error loading list correction", err)
		return
	}

	idx, ok := studentIndex(c.Students, r.FormValue("student_id"))
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Unknown student", "", nil)
		return
	}
	c.SelectStudent(idx)
	if q, err := strconv.Atoi(r.FormValue("question")); err == nil {
		c.SelectQuestion(q)
	}
	c.Edit()

	fieldErrors := make(map[string]string)
	for _, ex := range c.List.Exercises {
		input, present := r.Form["grade_"+ex.ID]
		if !present {
			continue
		}
		if !c.SetExerciseGrade(ex.ID, input[0]) {
			fieldErrors[ex.ID] = fmt.Sprintf("Must be a number between 0 and %s", grading.FormatGrade(ex.Grade))
		}
	}
	if len(fieldErrors) > 0 {
		page := h.page(w, r, "List correction - EduPanel")
		page.Error = "Some grades are out of range"
		renderTemplate(w, h.templates, "correction_list.tmpl", http.StatusUnprocessableEntity, h.listView(page, c, fieldErrors))
		return
	}
	for _, ex := range c.List.Exercises {
		c.BlurExerciseGrade(ex.ID)
	}

	goToNext := r.FormValue("action") == "save_next"
	if err := h.correctionService.SubmitList(r.Context(), session, c, goToNext); err != nil {
		h.renderSubmitError(w, r, err, func(page Page) {
			renderTemplate(w, h.templates, "correction_list.tmpl", submitErrorStatus(err), h.listView(page, c, nil))
		})
		return
	}

	setFlash(w, r, c.Notice)
	http.Redirect(w, r, correctionURL("/teacher/lists/"+url.PathEscape(listID)+"/correction", c.Selected, 0, false), http.StatusSeeOther)
}

func (h *CorrectionHandler) listView(page Page, c *grading.ListCorrection, fieldErrors map[string]string) ListCorrectionViewData {
	graded, total := c.Progress()
	data := ListCorrectionViewData{
		Page:          page,
		List:          c.List,
		Roster:        rosterRows(c.Students, c.Selected),
		Selected:      c.Selected,
		Question:      c.Question,
		Editing:       c.Editing,
		IsLast:        c.IsLast(),
		CurrentTotal:  grading.FormatGrade(c.CurrentTotal()),
		TotalPossible: grading.FormatGrade(c.TotalPossible()),
		Graded:        graded,
		Total:         total,
	}

	student, ok := c.Current()
	if ok {
		data.StudentID = student.User.ID
		data.StudentName = student.User.Name
	}
	for i, ex := range c.List.Exercises {
		q := ListQuestionView{
			Index:  i,
			Grade:  c.ExerciseGrades[ex.ID],
			Error:  fieldErrors[ex.ID],
			Active: i == c.Question,
		}
		answer := ""
		if ok {
			if attempt, found := student.AttemptFor(ex.ID); found {
				q.Attempted = true
				answer = attempt.Answer
			}
		}
		q.Answer = answerView(ex, answer)
		data.Questions = append(data.Questions, q)
	}
	return data
}

// ShowJournal lists every grade write issued for an exercise or list
func (h *CorrectionHandler) ShowJournal(w http.ResponseWriter, r *http.Request) {
	scopeID := r.PathValue("id")
	entries, err := h.correctionService.Journal(r.Context(), scopeID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error loading grade journal", err)
		return
	}

	data := JournalViewData{
		Page:    h.page(w, r, "Grade journal - EduPanel"),
		ScopeID: scopeID,
		Entries: entries,
	}
	renderTemplate(w, h.templates, "journal.tmpl", http.StatusOK, data)
}

// DownloadGradebook exports a list's grades as PDF (default) or JSON
func (h *CorrectionHandler) DownloadGradebook(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	gb, err := h.reportService.Gradebook(r.Context(), session, r.PathValue("id"))
	if err != nil {
		respondWithBackendError(w, "Error building gradebook", err)
		return
	}

	filename := "gradebook-" + url.PathEscape(gb.ListID)
	switch r.URL.Query().Get("format") {
	case "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.json"`)
		err = gb.WriteJSON(w)
	default:
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.pdf"`)
		err = gb.WritePDF(w)
	}
	if err != nil {
		log.Printf("Error writing gradebook for list %s: %v", gb.ListID, err)
	}
}
