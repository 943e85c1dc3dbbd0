package service

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edupanel/internal/models"
	"edupanel/internal/repository"
	"edupanel/internal/security"
	"edupanel/internal/validation"
)

func signedToken(t *testing.T, claims tokenClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return token
}

func newAuthService(t *testing.T, mux *http.ServeMux) (*AuthService, *repository.SessionRepository) {
	t.Helper()
	sessions := repository.NewSessionRepository(openTestDB(t))
	svc := NewAuthService(newBackend(t, mux), sessions, security.NewTokenBox("test-secret"), &EmailService{}, 24*time.Hour, false)
	return svc, sessions
}

func TestLoginCreatesSealedSession(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signedToken(t, tokenClaims{
		Role: models.RoleTeacher,
		Name: "Prof. Lima",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "t1",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "lima@school.io", body["email"])
		writeJSON(t, w, map[string]interface{}{
			"token": token,
			"user":  map[string]string{"email": "lima@school.io"},
		})
	})
	svc, sessions := newAuthService(t, mux)
	ctx := context.Background()

	session, err := svc.Login(ctx, "  Lima@School.io ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, token, session.Token)
	assert.Equal(t, "t1", session.User.ID)
	assert.Equal(t, models.RoleTeacher, session.User.Role)
	assert.Equal(t, "Prof. Lima", session.User.Name)
	assert.WithinDuration(t, exp, session.ExpiresAt, time.Second)

	stored, err := sessions.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEqual(t, token, stored.Token, "token must be sealed at rest")

	validated, err := svc.ValidateSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, token, validated.Token)

	require.NoError(t, svc.Logout(ctx, session.ID))
	_, err = svc.ValidateSession(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid credentials"}`))
	})
	svc, _ := newAuthService(t, mux)

	_, err := svc.Login(context.Background(), "lima@school.io", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "not-an-email", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRejectsUnknownRole(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]interface{}{
			"token": "opaque-token",
			"user":  map[string]string{"id": "x", "role": "admin"},
		})
	})
	svc, _ := newAuthService(t, mux)

	_, err := svc.Login(context.Background(), "root@school.io", "password1")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestValidateSessionExpired(t *testing.T) {
	svc, sessions := newAuthService(t, http.NewServeMux())
	ctx := context.Background()

	sealed, err := svc.box.Seal("tok")
	require.NoError(t, err)
	require.NoError(t, sessions.CreateSession(ctx, &models.Session{
		ID:        "old",
		User:      models.BackendUser{ID: "s1", Role: models.RoleStudent},
		Token:     sealed,
		ExpiresAt: time.Now().Add(-time.Minute),
		CreatedAt: time.Now().Add(-time.Hour),
	}))

	_, err = svc.ValidateSession(ctx, "old")
	assert.ErrorIs(t, err, ErrSessionExpired)

	stored, err := sessions.GetSession(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, stored, "expired session should be deleted")
}

func TestRegister(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /users", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["email"] == "taken@school.io" {
			w.WriteHeader(http.StatusConflict)
			return
		}
		writeJSON(t, w, models.BackendUser{ID: "s9", Name: body["name"], Email: body["email"], Role: body["role"]})
	})
	svc, _ := newAuthService(t, mux)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterForm{Name: " Bia ", Email: "BIA@school.io", Password: "longenough", Role: "student"})
	require.NoError(t, err)
	assert.Equal(t, "Bia", user.Name)
	assert.Equal(t, "bia@school.io", user.Email)

	_, err = svc.Register(ctx, RegisterForm{Name: "Taken", Email: "taken@school.io", Password: "longenough", Role: "teacher"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Register(ctx, RegisterForm{Name: "Bia", Email: "bia@school.io", Password: "short", Role: "principal"})
	errs, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Contains(t, errs, "password")
	assert.Contains(t, errs, "role")
}

func TestSessionTokenSource(t *testing.T) {
	session := teacherSession()
	tok, err := SessionTokenSource(session).Token()
	require.NoError(t, err)
	assert.Equal(t, "teacher-token", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)

	session.ExpiresAt = time.Now().Add(-time.Second)
	_, err = SessionTokenSource(session).Token()
	assert.ErrorIs(t, err, ErrSessionExpired)
}
