package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"edupanel/internal/database"
	"edupanel/internal/models"
	"edupanel/internal/repository"
	"edupanel/internal/security"
	"edupanel/internal/service"
)

const testSecret = "handlers-test-secret"

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "handlers.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.RunMigrations("../../migrations"); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

// newTestMiddleware returns middleware backed by a real session store
// holding one session per given user.
func newTestMiddleware(t *testing.T, users ...models.BackendUser) (*Middleware, map[string]string) {
	t.Helper()
	db := openTestDB(t)
	sessions := repository.NewSessionRepository(db)
	box := security.NewTokenBox(testSecret)

	ids := make(map[string]string, len(users))
	for _, u := range users {
		sealed, err := box.Seal("token-" + u.ID)
		if err != nil {
			t.Fatalf("failed to seal token: %v", err)
		}
		s := &models.Session{
			ID:        security.GenerateSessionID(),
			User:      u,
			Token:     sealed,
			ExpiresAt: time.Now().Add(time.Hour),
			CreatedAt: time.Now(),
		}
		if err := sessions.CreateSession(context.Background(), s); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		ids[u.ID] = s.ID
	}

	auth := service.NewAuthService(nil, sessions, box, nil, time.Hour, false)
	limiter := security.NewRateLimiter(1, time.Minute)
	t.Cleanup(limiter.Stop)
	return NewMiddleware(auth, security.NewCSRFGenerator(testSecret), limiter), ids
}

func withSession(r *http.Request, session *models.Session) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), SessionContextKey, session))
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRequireAuthRedirectsWithoutSession(t *testing.T) {
	m, _ := newTestMiddleware(t)

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{"no cookie", nil},
		{"unknown session", &http.Cookie{Name: security.SessionCookieName, Value: "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rec := httptest.NewRecorder()

			m.RequireAuth(okHandler)(rec, req)

			if rec.Code != http.StatusSeeOther {
				t.Fatalf("expected 303, got %d", rec.Code)
			}
			if loc := rec.Header().Get("Location"); loc != "/login" {
				t.Fatalf("expected redirect to /login, got %q", loc)
			}
		})
	}
}

func TestRequireAuthStoresSession(t *testing.T) {
	m, ids := newTestMiddleware(t, models.BackendUser{ID: "s1", Name: "Bia", Role: models.RoleStudent})

	var got *models.Session
	handler := m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		got = GetSessionFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: ids["s1"]})
	handler(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("expected session in context")
	}
	if got.User.Name != "Bia" {
		t.Fatalf("expected user Bia, got %q", got.User.Name)
	}
	if got.Token != "token-s1" {
		t.Fatalf("expected unsealed token, got %q", got.Token)
	}
}

func TestRequireTeacher(t *testing.T) {
	m, ids := newTestMiddleware(t,
		models.BackendUser{ID: "t1", Name: "Prof. Lima", Role: models.RoleTeacher},
		models.BackendUser{ID: "s1", Name: "Bia", Role: models.RoleStudent},
	)

	tests := []struct {
		user     string
		expected int
	}{
		{"t1", http.StatusOK},
		{"s1", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/teacher/avatars", nil)
			req.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: ids[tt.user]})
			rec := httptest.NewRecorder()

			m.RequireTeacher(okHandler)(rec, req)

			if rec.Code != tt.expected {
				t.Fatalf("expected %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}

func TestCSRFProtect(t *testing.T) {
	m, _ := newTestMiddleware(t)
	session := &models.Session{ID: "sess-1", User: models.BackendUser{ID: "t1", Role: models.RoleTeacher}, ExpiresAt: time.Now().Add(time.Hour)}

	valid := m.CSRFToken(withSession(httptest.NewRequest(http.MethodGet, "/", nil), session))
	if valid == "" {
		t.Fatal("expected a CSRF token")
	}

	tests := []struct {
		name     string
		token    string
		expected int
	}{
		{"valid token", valid, http.StatusOK},
		{"missing token", "", http.StatusForbidden},
		{"forged token", "forged", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{security.CSRFFormField: {tt.token}}
			req := httptest.NewRequest(http.MethodPost, "/teacher/avatars", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()

			m.CSRFProtect(okHandler)(rec, withSession(req, session))

			if rec.Code != tt.expected {
				t.Fatalf("expected %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	m, _ := newTestMiddleware(t)
	handler := m.RateLimit(okHandler)

	codes := make([]int, 2)
	for i := range codes {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "203.0.113.7:4242"
		rec := httptest.NewRecorder()
		handler(rec, req)
		codes[i] = rec.Code
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected [200 429], got %v", codes)
	}
}

func TestLoggingRecordsStatus(t *testing.T) {
	handler := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rec.Code)
	}
}
