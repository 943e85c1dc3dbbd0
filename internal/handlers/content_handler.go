package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"edupanel/internal/models"
	"edupanel/internal/service"
	"edupanel/internal/validation"
)

// ContentHandler serves lesson plans and the content editors
type ContentHandler struct {
	contentService *service.ContentService
	middleware     *Middleware
	templates      *template.Template
	uploadMaxSize  int64
}

// NewContentHandler creates a new content handler
func NewContentHandler(contentService *service.ContentService, middleware *Middleware, templates *template.Template, uploadMaxSize int64) *ContentHandler {
	return &ContentHandler{
		contentService: contentService,
		middleware:     middleware,
		templates:      templates,
		uploadMaxSize:  uploadMaxSize,
	}
}

func (h *ContentHandler) page(w http.ResponseWriter, r *http.Request, title string) Page {
	return Page{
		Title:     title,
		Session:   GetSessionFromContext(r.Context()),
		CSRFToken: h.middleware.CSRFToken(r),
		Flash:     readFlash(w, r),
	}
}

// formErrors splits a service error into field errors and a page error.
// ok is false when err is not a user input problem.
func formErrors(err error) (fields map[string]string, msg string, ok bool) {
	if errs, isValidation := validation.AsErrors(err); isValidation {
		return errs, "Please fix the highlighted fields", true
	}
	if errors.Is(err, service.ErrNoCorrectOption) {
		return nil, err.Error(), true
	}
	return nil, "", false
}

func planURL(planID string) string {
	if planID == "" {
		return "/dashboard"
	}
	return "/lesson-plans/" + url.PathEscape(planID)
}

// backToPlan redirects to the lesson plan owning a piece of content, or the dashboard
func (h *ContentHandler) backToPlan(w http.ResponseWriter, r *http.Request, contentID, contentType string) {
	planID := r.FormValue("lesson_plan_id")
	if planID == "" {
		var err error
		planID, err = h.contentService.OwningLessonPlan(r.Context(), GetSessionFromContext(r.Context()), contentID, contentType)
		if err != nil {
			log.Printf("Error resolving lesson plan of %s %s: %v", contentType, contentID, err)
		}
	}
	http.Redirect(w, r, planURL(planID), http.StatusSeeOther)
}

// Dashboard lists the lesson plans
func (h *ContentHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	plans, err := h.contentService.ListLessonPlans(r.Context(), GetSessionFromContext(r.Context()))
	if err != nil {
		respondWithBackendError(w, "Error listing lesson plans", err)
		return
	}
	data := DashboardViewData{Page: h.page(w, r, "Dashboard - EduPanel"), LessonPlans: plans}
	renderTemplate(w, h.templates, "dashboard.tmpl", http.StatusOK, data)
}

// ViewLessonPlan shows a lesson plan with everything attached to it
func (h *ContentHandler) ViewLessonPlan(w http.ResponseWriter, r *http.Request) {
	contents, err := h.contentService.GetPlanContents(r.Context(), GetSessionFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respondWithBackendError(w, "Error loading lesson plan", err)
		return
	}
	data := LessonPlanViewData{
		Page:     h.page(w, r, contents.Plan.Name+" - EduPanel"),
		Contents: contents,
		Form:     service.LessonPlanForm{Name: contents.Plan.Name, Icon: contents.Plan.Icon},
	}
	renderTemplate(w, h.templates, "lesson_plan.tmpl", http.StatusOK, data)
}

// CreateLessonPlan handles the new lesson plan form on the dashboard
func (h *ContentHandler) CreateLessonPlan(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	form := service.LessonPlanForm{Name: r.FormValue("name"), Icon: r.FormValue("icon")}

	plan, err := h.contentService.CreateLessonPlan(r.Context(), session, form)
	if err != nil {
		fields, msg, ok := formErrors(err)
		if !ok {
			respondWithBackendError(w, "Error creating lesson plan", err)
			return
		}
		plans, listErr := h.contentService.ListLessonPlans(r.Context(), session)
		if listErr != nil {
			log.Printf("Error listing lesson plans: %v", listErr)
		}
		page := h.page(w, r, "Dashboard - EduPanel")
		page.Error = msg
		if len(fields) > 0 {
			page.Error = validation.Errors(fields).Error()
		}
		renderTemplate(w, h.templates, "dashboard.tmpl", http.StatusUnprocessableEntity, DashboardViewData{Page: page, LessonPlans: plans})
		return
	}
	http.Redirect(w, r, planURL(plan.ID), http.StatusSeeOther)
}

// UpdateLessonPlan handles the rename form of a lesson plan
func (h *ContentHandler) UpdateLessonPlan(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	id := r.PathValue("id")
	form := service.LessonPlanForm{Name: r.FormValue("name"), Icon: r.FormValue("icon")}

	if err := h.contentService.UpdateLessonPlan(r.Context(), session, id, form); err != nil {
		fields, msg, ok := formErrors(err)
		if !ok {
			respondWithBackendError(w, "Error updating lesson plan", err)
			return
		}
		contents, loadErr := h.contentService.GetPlanContents(r.Context(), session, id)
		if loadErr != nil {
			respondWithBackendError(w, "Error loading lesson plan", loadErr)
			return
		}
		page := h.page(w, r, contents.Plan.Name+" - EduPanel")
		page.Error = msg
		data := LessonPlanViewData{Page: page, Contents: contents, Form: form, Errors: fields}
		renderTemplate(w, h.templates, "lesson_plan.tmpl", http.StatusUnprocessableEntity, data)
		return
	}
	http.Redirect(w, r, planURL(id), http.StatusSeeOther)
}

// DeleteLessonPlan deletes a lesson plan
func (h *ContentHandler) DeleteLessonPlan(w http.ResponseWriter, r *http.Request) {
	if err := h.contentService.DeleteLessonPlan(r.Context(), GetSessionFromContext(r.Context()), r.PathValue("id")); err != nil {
		respondWithBackendError(w, "Error deleting lesson plan", err)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func lessonFormFromRequest(r *http.Request) service.LessonForm {
	return service.LessonForm{
		Title:        r.FormValue("title"),
		Content:      r.FormValue("content"),
		VideoURL:     strings.TrimSpace(r.FormValue("video_url")),
		LessonPlanID: r.FormValue("lesson_plan_id"),
	}
}

// ViewLesson shows a lesson to teachers and students
func (h *ContentHandler) ViewLesson(w http.ResponseWriter, r *http.Request) {
	lesson, err := h.contentService.GetLesson(r.Context(), GetSessionFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respondWithBackendError(w, "Error loading lesson", err)
		return
	}
	data := LessonEditorViewData{
		Page:     h.page(w, r, lesson.Title+" - EduPanel"),
		LessonID: lesson.ID,
		Form:     service.LessonForm{Title: lesson.Title, Content: lesson.Content, VideoURL: lesson.VideoURL},
	}
	renderTemplate(w, h.templates, "lesson.tmpl", http.StatusOK, data)
}

// ShowLessonEditor renders the lesson editor, empty or for an existing lesson
func (h *ContentHandler) ShowLessonEditor(w http.ResponseWriter, r *http.Request) {
	data := LessonEditorViewData{
		Page: h.page(w, r, "Lesson editor - EduPanel"),
		Form: service.LessonForm{LessonPlanID: r.URL.Query().Get("plan")},
	}
	if id := r.PathValue("id"); id != "" {
		lesson, err := h.contentService.GetLesson(r.Context(), data.Session, id)
		if err != nil {
			respondWithBackendError(w, "Error loading lesson", err)
			return
		}
		data.LessonID = lesson.ID
		data.Form.Title, data.Form.Content, data.Form.VideoURL = lesson.Title, lesson.Content, lesson.VideoURL
	}
	renderTemplate(w, h.templates, "lesson_editor.tmpl", http.StatusOK, data)
}

// SaveLesson creates or updates a lesson
func (h *ContentHandler) SaveLesson(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	id := r.PathValue("id")
	form := lessonFormFromRequest(r)

	var err error
	if id == "" {
		var lesson *models.Lesson
		if lesson, err = h.contentService.CreateLesson(r.Context(), session, form); err == nil {
			id = lesson.ID
		}
	} else {
		err = h.contentService.UpdateLesson(r.Context(), session, id, form)
	}
	if err != nil {
		fields, msg, ok := formErrors(err)
		if !ok {
			respondWithBackendError(w, "Error saving lesson", err)
			return
		}
		page := h.page(w, r, "Lesson editor - EduPanel")
		page.Error = msg
		data := LessonEditorViewData{Page: page, LessonID: id, Form: form, Errors: fields}
		renderTemplate(w, h.templates, "lesson_editor.tmpl", http.StatusUnprocessableEntity, data)
		return
	}
	h.backToPlan(w, r, id, models.ContentLesson)
}

// DeleteLesson deletes a lesson
func (h *ContentHandler) DeleteLesson(w http.ResponseWriter, r *http.Request) {
	h.deleteContent(w, r, models.ContentLesson, h.contentService.DeleteLesson)
}

func (h *ContentHandler) deleteContent(w http.ResponseWriter, r *http.Request, contentType string, remove func(context.Context, *models.Session, string) error) {
	session := GetSessionFromContext(r.Context())
	id := r.PathValue("id")

	planID, err := h.contentService.OwningLessonPlan(r.Context(), session, id, contentType)
	if err != nil {
		log.Printf("Error resolving lesson plan of %s %s: %v", contentType, id, err)
	}
	if err := remove(r.Context(), session, id); err != nil {
		respondWithBackendError(w, "Error deleting "+contentType, err)
		return
	}
	http.Redirect(w, r, planURL(planID), http.StatusSeeOther)
}

// exerciseFormFromRequest reads the exercise editor. Statement rows carry a
// "truth_<row>" radio holding "true" or "false".
func exerciseFormFromRequest(r *http.Request) (service.ExerciseForm, error) {
	grade, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(r.FormValue("grade")), ",", ".", 1), 64)
	if err != nil {
		return service.ExerciseForm{}, validation.Errors{"grade": "grade must be a number"}
	}
	form := service.ExerciseForm{
		Statement:    r.FormValue("statement"),
		Type:         r.FormValue("type"),
		Grade:        grade,
		ShowAnswer:   r.FormValue("show_answer") == "on",
		Answer:       r.FormValue("answer"),
		Correct:      r.FormValue("correct"),
		LessonPlanID: r.FormValue("lesson_plan_id"),
	}
	// The editor always posts one empty row for adding an option; blank rows are dropped
	// and the correct index follows the remaining ones.
	switch models.ExerciseType(form.Type) {
	case models.ExerciseMultipleChoice:
		correct := form.Correct
		form.Correct = ""
		for i, choice := range r.Form["choices"] {
			if strings.TrimSpace(choice) == "" {
				continue
			}
			if correct == strconv.Itoa(i) {
				form.Correct = strconv.Itoa(len(form.Choices))
			}
			form.Choices = append(form.Choices, choice)
		}
	case models.ExerciseTrueFalse:
		for i, statement := range r.Form["statements"] {
			if strings.TrimSpace(statement) == "" {
				continue
			}
			form.Statements = append(form.Statements, statement)
			switch r.FormValue("truth_" + strconv.Itoa(i)) {
			case "true":
				form.Truth = append(form.Truth, true)
			case "false":
				form.Truth = append(form.Truth, false)
			}
		}
	}
	return form, nil
}

func exerciseFormFromModel(ex *models.Exercise) service.ExerciseForm {
	form := service.ExerciseForm{
		Statement:  ex.Statement,
		Type:       string(ex.Type),
		Grade:      ex.Grade,
		ShowAnswer: ex.ShowAnswer,
		Answer:     ex.Answer,
		Choices:    ex.Choices,
	}
	if ex.Type == models.ExerciseMultipleChoice {
		form.Correct = ex.Answer
		form.Answer = ""
	}
	for _, opt := range ex.TrueFalse {
		form.Statements = append(form.Statements, opt.Statement)
		form.Truth = append(form.Truth, opt.Answer)
	}
	return form
}

// ShowExerciseEditor renders the exercise editor
func (h *ContentHandler) ShowExerciseEditor(w http.ResponseWriter, r *http.Request) {
	data := ExerciseEditorViewData{
		Page: h.page(w, r, "Exercise editor - EduPanel"),
		Form: service.ExerciseForm{Type: string(models.ExerciseOpen), Grade: 10, LessonPlanID: r.URL.Query().Get("plan")},
	}
	if id := r.PathValue("id"); id != "" {
		ex, err := h.contentService.GetExercise(r.Context(), data.Session, id)
		if err != nil {
			respondWithBackendError(w, "Error loading exercise", err)
			return
		}
		data.ExerciseID = ex.ID
		data.Form = exerciseFormFromModel(ex)
	}
	renderTemplate(w, h.templates, "exercise_editor.tmpl", http.StatusOK, data)
}

// SaveExercise creates or updates an exercise
func (h *ContentHandler) SaveExercise(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "", err)
		return
	}
	session := GetSessionFromContext(r.Context())
	id := r.PathValue("id")

	form, err := exerciseFormFromRequest(r)
	if err == nil {
		if id == "" {
			var ex *models.Exercise
			if ex, err = h.contentService.CreateExercise(r.Context(), session, form); err == nil {
				id = ex.ID
			}
		} else {
			err = h.contentService.UpdateExercise(r.Context(), session, id, form)
		}
	}
	if err != nil {
		fields, msg, ok := formErrors(err)
		if !ok {
			respondWithBackendError(w, "Error saving exercise", err)
			return
		}
		page := h.page(w, r, "Exercise editor - EduPanel")
		page.Error = msg
		data := ExerciseEditorViewData{Page: page, ExerciseID: id, Form: form, Errors: fields}
		renderTemplate(w, h.templates, "exercise_editor.tmpl", http.StatusUnprocessableEntity, data)
		return
	}
	h.backToPlan(w, r, id, models.ContentExercise)
}

// DeleteExercise deletes an exercise
func (h *ContentHandler) DeleteExercise(w http.ResponseWriter, r *http.Request) {
	h.deleteContent(w, r, models.ContentExercise, h.contentService.DeleteExercise)
}

func listFormFromRequest(r *http.Request) (service.ExerciseListForm, error) {
	form := service.ExerciseListForm{
		Name:         r.FormValue("name"),
		ExerciseIDs:  r.Form["exercises_ids"],
		LessonPlanID: r.FormValue("lesson_plan_id"),
	}
	if raw := strings.TrimSpace(r.FormValue("due_date")); raw != "" {
		due, err := time.ParseInLocation("2006-01-02T15:04", raw, time.Local)
		if err != nil {
			return form, validation.Errors{"due_date": "due_date must be a valid date and time"}
		}
		form.DueDate = &due
	}
	return form, nil
}

func (h *ContentHandler) listEditor(w http.ResponseWriter, r *http.Request, status int, data ListEditorViewData) {
	exercises, err := h.contentService.ListExercises(r.Context(), data.Session)
	if err != nil {
		respondWithBackendError(w, "Error listing exercises", err)
		return
	}
	data.Exercises = exercises
	data.Selected = make(map[string]bool, len(data.Form.ExerciseIDs))
	for _, id := range data.Form.ExerciseIDs {
		data.Selected[id] = true
	}
	renderTemplate(w, h.templates, "list_editor.tmpl", status, data)
}

// ShowListEditor renders the exercise list editor
func (h *ContentHandler) ShowListEditor(w http.ResponseWriter, r *http.Request) {
	data := ListEditorViewData{
		Page: h.page(w, r, "Exercise list editor - EduPanel"),
		Form: service.ExerciseListForm{LessonPlanID: r.URL.Query().Get("plan")},
	}
	if id := r.PathValue("id"); id != "" {
		list, err := h.contentService.GetExerciseList(r.Context(), data.Session, id)
		if err != nil {
			respondWithBackendError(w, "Error loading exercise list", err)
			return
		}
		data.ListID = list.ID
		data.Form.Name, data.Form.ExerciseIDs, data.Form.DueDate = list.Name, list.ExerciseIDs, list.DueDate
	}
	h.listEditor(w, r, http.StatusOK, data)
}

// SaveExerciseList creates or updates an exercise list
func (h *ContentHandler) SaveExerciseList(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "", err)
		return
	}
	session := GetSessionFromContext(r.Context())
	id := r.PathValue("id")

	form, err := listFormFromRequest(r)
	if err == nil {
		if id == "" {
			var list *models.ExerciseList
			if list, err = h.contentService.CreateExerciseList(r.Context(), session, form); err == nil {
				id = list.ID
			}
		} else {
			err = h.contentService.UpdateExerciseList(r.Context(), session, id, form)
		}
	}
	if err != nil {
		fields, msg, ok := formErrors(err)
		if !ok {
			respondWithBackendError(w, "Error saving exercise list", err)
			return
		}
		page := h.page(w, r, "Exercise list editor - EduPanel")
		page.Error = msg
		h.listEditor(w, r, http.StatusUnprocessableEntity, ListEditorViewData{Page: page, ListID: id, Form: form, Errors: fields})
		return
	}
	h.backToPlan(w, r, id, models.ContentExerciseList)
}

// DeleteExerciseList deletes an exercise list
func (h *ContentHandler) DeleteExerciseList(w http.ResponseWriter, r *http.Request) {
	h.deleteContent(w, r, models.ContentExerciseList, h.contentService.DeleteExerciseList)
}

// Upload proxies an image or attachment to the backend storage
func (h *ContentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadMaxSize)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondWithError(w, http.StatusBadRequest, "File too large or invalid upload", "", err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Missing file", "", err)
		return
	}
	defer file.Close()

	fileURL, err := h.contentService.Upload(r.Context(), GetSessionFromContext(r.Context()), header.Filename, file)
	if err != nil {
		respondWithBackendError(w, "Error uploading file", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"url": fileURL}); err != nil {
		log.Printf("Error writing upload response: %v", err)
	}
}
