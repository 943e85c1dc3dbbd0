package handlers

import (
	"errors"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"edupanel/internal/grading"
	"edupanel/internal/models"
	"edupanel/internal/service"
)

// StudentHandler serves the pages where students answer exercises and lists
type StudentHandler struct {
	studentService *service.StudentService
	middleware     *Middleware
	templates      *template.Template
}

// NewStudentHandler creates a new student handler
func NewStudentHandler(studentService *service.StudentService, middleware *Middleware, templates *template.Template) *StudentHandler {
	return &StudentHandler{
		studentService: studentService,
		middleware:     middleware,
		templates:      templates,
	}
}

func (h *StudentHandler) page(w http.ResponseWriter, r *http.Request, title string) Page {
	return Page{
		Title:     title,
		Session:   GetSessionFromContext(r.Context()),
		CSRFToken: h.middleware.CSRFToken(r),
		Flash:     readFlash(w, r),
	}
}

// answerInput reads the answer fields of one exercise. Field names are
// suffixed with the exercise ID so a list page can carry every question.
// True/false statements post "tf_<exercise>_<statement key>".
func answerInput(r *http.Request, ex models.Exercise) service.AnswerInput {
	in := service.AnswerInput{
		Text:   r.FormValue("answer_" + ex.ID),
		Choice: r.FormValue("choice_" + ex.ID),
	}
	if ex.Type == models.ExerciseTrueFalse {
		in.TrueFalse = make(map[string]string, len(ex.TrueFalse))
		prefix := "tf_" + ex.ID + "_"
		for name, values := range r.PostForm {
			if key, ok := strings.CutPrefix(name, prefix); ok && len(values) > 0 {
				in.TrueFalse[key] = values[0]
			}
		}
	}
	return in
}

// answerErrorMessage turns an encoding failure into text for the form
func answerErrorMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, service.ErrEmptyAnswer),
		errors.Is(err, service.ErrInvalidChoice),
		errors.Is(err, grading.ErrUnansweredOption),
		errors.Is(err, service.ErrListCompleted),
		errors.Is(err, service.ErrDeadlinePassed),
		errors.Is(err, service.ErrUnknownExercise),
		errors.Is(err, service.ErrUnsupportedType):
		return err.Error(), true
	}
	return "", false
}

// ShowExercise renders the answer form of a single exercise
func (h *StudentHandler) ShowExercise(w http.ResponseWriter, r *http.Request) {
	ex, err := h.studentService.GetExercise(r.Context(), GetSessionFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respondWithBackendError(w, "Error loading exercise", err)
		return
	}
	data := StudentExerciseViewData{Page: h.page(w, r, "Exercise - EduPanel"), Question: questionForm(*ex)}
	renderTemplate(w, h.templates, "student_exercise.tmpl", http.StatusOK, data)
}

// SubmitExercise sends the student's answer to one exercise
func (h *StudentHandler) SubmitExercise(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "", err)
		return
	}
	session := GetSessionFromContext(r.Context())
	ex, err := h.studentService.GetExercise(r.Context(), session, r.PathValue("id"))
	if err != nil {
		respondWithBackendError(w, "Error loading exercise", err)
		return
	}

	if _, err := h.studentService.SubmitExercise(r.Context(), session, *ex, answerInput(r, *ex)); err != nil {
		msg, ok := answerErrorMessage(err)
		if !ok {
			respondWithBackendError(w, "Error submitting answer", err)
			return
		}
		q := questionForm(*ex)
		q.Error = msg
		data := StudentExerciseViewData{Page: h.page(w, r, "Exercise - EduPanel"), Question: q}
		renderTemplate(w, h.templates, "student_exercise.tmpl", http.StatusUnprocessableEntity, data)
		return
	}

	setFlash(w, r, grading.NewNotice("Answer sent", time.Now()))
	http.Redirect(w, r, "/student/exercises/"+url.PathEscape(ex.ID), http.StatusSeeOther)
}

func (h *StudentHandler) listView(page Page, view *service.ListView) StudentListViewData {
	data := StudentListViewData{Page: page, List: view.List, Completion: view.Completion}
	for _, ex := range view.List.Exercises {
		data.Questions = append(data.Questions, questionForm(ex))
	}
	return data
}

// ShowList renders an exercise list with one form for all its questions
func (h *StudentHandler) ShowList(w http.ResponseWriter, r *http.Request) {
	view, err := h.studentService.GetList(r.Context(), GetSessionFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respondWithBackendError(w, "Error loading exercise list", err)
		return
	}
	data := h.listView(h.page(w, r, view.List.Name+" - EduPanel"), view)
	renderTemplate(w, h.templates, "student_list.tmpl", http.StatusOK, data)
}

// SubmitList sends every answer of a list in one request
func (h *StudentHandler) SubmitList(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "", err)
		return
	}
	session := GetSessionFromContext(r.Context())
	view, err := h.studentService.GetList(r.Context(), session, r.PathValue("id"))
	if err != nil {
		respondWithBackendError(w, "Error loading exercise list", err)
		return
	}

	inputs := make(map[string]service.AnswerInput, len(view.List.Exercises))
	for _, ex := range view.List.Exercises {
		inputs[ex.ID] = answerInput(r, ex)
	}

	if _, err := h.studentService.SubmitList(r.Context(), session, view, inputs); err != nil {
		msg, ok := answerErrorMessage(err)
		if !ok {
			respondWithBackendError(w, "Error submitting list", err)
			return
		}
		status := http.StatusUnprocessableEntity
		if errors.Is(err, service.ErrListCompleted) || errors.Is(err, service.ErrDeadlinePassed) {
			status = http.StatusConflict
		}
		page := h.page(w, r, view.List.Name+" - EduPanel")
		page.Error = msg
		renderTemplate(w, h.templates, "student_list.tmpl", status, h.listView(page, view))
		return
	}

	log.Printf("Student %s submitted list %s", session.User.ID, view.List.ID)
	setFlash(w, r, grading.NewNotice("Answers sent", time.Now()))
	http.Redirect(w, r, "/student/lists/"+url.PathEscape(view.List.ID), http.StatusSeeOther)
}
