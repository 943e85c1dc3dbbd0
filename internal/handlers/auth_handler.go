package handlers

import (
	"errors"
	"html/template"
	"log"
	"net/http"

	"edupanel/internal/security"
	"edupanel/internal/service"
	"edupanel/internal/validation"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService *service.AuthService
	templates   *template.Template
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, templates *template.Template) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		templates:   templates,
	}
}

// loggedIn reports whether the request carries a valid session
func (h *AuthHandler) loggedIn(r *http.Request) bool {
	cookie, err := r.Cookie(security.SessionCookieName)
	if err != nil {
		return false
	}
	_, err = h.authService.ValidateSession(r.Context(), cookie.Value)
	return err == nil
}

// ShowLogin renders the login page
func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	if h.loggedIn(r) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	data := LoginViewData{Page: Page{Title: "Login - EduPanel", Flash: readFlash(w, r)}}
	renderTemplate(w, h.templates, "login.tmpl", http.StatusOK, data)
}

// Login handles login form submission
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "", err)
		return
	}

	email := r.FormValue("email")
	password := r.FormValue("password")

	session, err := h.authService.Login(r.Context(), email, password)
	if err != nil {
		status := http.StatusUnauthorized
		msg := "Invalid email or password"
		if !errors.Is(err, service.ErrInvalidCredentials) && !errors.Is(err, service.ErrInvalidRole) {
			log.Printf("Error logging in %s: %v", email, err)
			status, msg = backendStatus(err)
		}
		data := LoginViewData{Page: Page{Title: "Login - EduPanel", Error: msg}, Email: email}
		renderTemplate(w, h.templates, "login.tmpl", status, data)
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, session.ID, session.ExpiresAt))
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// ShowRegister renders the registration page
func (h *AuthHandler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	if h.loggedIn(r) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	data := RegisterViewData{
		Page: Page{Title: "Register - EduPanel"},
		Form: service.RegisterForm{Role: r.URL.Query().Get("role")},
	}
	renderTemplate(w, h.templates, "register.tmpl", http.StatusOK, data)
}

// Register handles registration form submission
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "", err)
		return
	}

	form := service.RegisterForm{
		Name:     r.FormValue("name"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
		Role:     r.FormValue("role"),
	}

	if _, err := h.authService.Register(r.Context(), form); err != nil {
		data := RegisterViewData{Page: Page{Title: "Register - EduPanel"}, Form: form}
		data.Form.Password = ""
		status := http.StatusUnprocessableEntity
		if errs, ok := validation.AsErrors(err); ok {
			data.Errors = errs
		} else if errors.Is(err, service.ErrEmailTaken) {
			data.Errors = map[string]string{"email": "An account with this email already exists"}
			status = http.StatusConflict
		} else {
			log.Printf("Error registering %s: %v", form.Email, err)
			status, data.Error = backendStatus(err)
		}
		renderTemplate(w, h.templates, "register.tmpl", status, data)
		return
	}

	// Auto-login after registration
	session, err := h.authService.Login(r.Context(), form.Email, form.Password)
	if err != nil {
		log.Printf("Registration of %s succeeded but login failed: %v", form.Email, err)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, session.ID, session.ExpiresAt))
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout handles logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(security.SessionCookieName); err == nil {
		if err := h.authService.Logout(r.Context(), cookie.Value); err != nil {
			log.Printf("Error logging out: %v", err)
		}
	}

	http.SetCookie(w, security.CreateDeleteCookie(r, security.SessionCookieName))
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Home sends visitors to the dashboard or the login page
func (h *AuthHandler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondWithError(w, http.StatusNotFound, ErrNotFound, "", nil)
		return
	}
	if h.loggedIn(r) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
