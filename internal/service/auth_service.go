package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"edupanel/internal/backend"
	"edupanel/internal/models"
	"edupanel/internal/repository"
	"edupanel/internal/security"
	"edupanel/internal/validation"
)

var (
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidRole        = errors.New("role must be teacher or student")
)

// tokenClaims is what the backend puts in its bearer tokens
type tokenClaims struct {
	Role  string `json:"role"`
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// inspectToken reads the claims of a backend token. The signature is checked by the
// backend on every call, so it is not verified here.
func inspectToken(raw string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// AuthService handles login against the backend and local browser sessions
type AuthService struct {
	client          *backend.Client
	sessions        *repository.SessionRepository
	box             *security.TokenBox
	email           *EmailService
	sessionDuration time.Duration
	now             func() time.Time
	debug           bool
}

// NewAuthService creates a new auth service
func NewAuthService(client *backend.Client, sessions *repository.SessionRepository, box *security.TokenBox, email *EmailService, sessionDuration time.Duration, debug bool) *AuthService {
	return &AuthService{
		client:          client,
		sessions:        sessions,
		box:             box,
		email:           email,
		sessionDuration: sessionDuration,
		now:             time.Now,
		debug:           debug,
	}
}

// RegisterForm is the sign-up form
type RegisterForm struct {
	Name     string `form:"name" validate:"notblank,min=2"`
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required,min=8"`
	Role     string `form:"role" validate:"required,oneof=teacher student"`
}

// Register creates an account on the backend
func (s *AuthService) Register(ctx context.Context, form RegisterForm) (*models.BackendUser, error) {
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.ToLower(strings.TrimSpace(form.Email))
	if err := validation.Struct(form); err != nil {
		return nil, err
	}

	user, err := s.client.Register(ctx, backend.RegisterRequest{
		Name:     form.Name,
		Email:    form.Email,
		Password: form.Password,
		Role:     form.Role,
	})
	if err != nil {
		if backend.StatusCode(err) == http.StatusConflict {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to register: %w", err)
	}

	if err := s.email.SendWelcomeEmail(ctx, user.Email, user.Name); err != nil {
		log.Printf("Warning: failed to send welcome email to %s: %v", user.Email, err)
	}
	return user, nil
}

// Login authenticates against the backend and creates a local session holding the sealed token.
// The returned session carries the plaintext token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if validation.ValidateEmail(email) != nil || password == "" {
		return nil, ErrInvalidCredentials
	}

	resp, err := s.client.Login(ctx, email, password)
	if err != nil {
		switch backend.StatusCode(err) {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to login: %w", err)
	}
	if resp.Token == "" {
		return nil, errors.New("backend returned an empty token")
	}

	now := s.now()
	user := resp.User
	expiresAt := now.Add(s.sessionDuration)

	claims, err := inspectToken(resp.Token)
	switch {
	case err != nil:
		if s.debug {
			log.Printf("[DEBUG] Backend token is not a readable JWT, using default session duration: %v", err)
		}
	default:
		if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(expiresAt) {
			expiresAt = claims.ExpiresAt.Time
		}
		if user.ID == "" {
			user.ID = claims.Subject
		}
		if user.Role == "" {
			user.Role = claims.Role
		}
		if user.Name == "" {
			user.Name = claims.Name
		}
		if user.Email == "" {
			user.Email = claims.Email
		}
	}
	if !expiresAt.After(now) {
		return nil, ErrSessionExpired
	}
	if user.Role != models.RoleTeacher && user.Role != models.RoleStudent {
		return nil, ErrInvalidRole
	}

	sealed, err := s.box.Seal(resp.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to seal token: %w", err)
	}

	session := &models.Session{
		ID:        security.GenerateSessionID(),
		User:      user,
		Token:     sealed,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	session.Token = resp.Token
	return session, nil
}

// ValidateSession loads a session and unseals its token
func (s *AuthService) ValidateSession(ctx context.Context, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if !s.now().Before(session.ExpiresAt) {
		_ = s.sessions.DeleteSession(ctx, sessionID)
		return nil, ErrSessionExpired
	}

	token, err := s.box.Open(session.Token)
	if err != nil {
		log.Printf("Warning: dropping session %s with unreadable token: %v", sessionID, err)
		_ = s.sessions.DeleteSession(ctx, sessionID)
		return nil, ErrSessionNotFound
	}
	session.Token = token
	return session, nil
}

// Logout invalidates a session
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// CleanupExpiredSessions removes expired sessions from the database
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	return n, nil
}

// sessionTokenSource hands the session's bearer token to the backend client
type sessionTokenSource struct {
	session *models.Session
	now     func() time.Time
}

func (ts sessionTokenSource) Token() (*oauth2.Token, error) {
	if ts.session == nil || ts.session.Token == "" {
		return nil, ErrSessionNotFound
	}
	if !ts.now().Before(ts.session.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	return &oauth2.Token{
		AccessToken: ts.session.Token,
		TokenType:   "Bearer",
		Expiry:      ts.session.ExpiresAt,
	}, nil
}

// SessionTokenSource is the auth provider for backend calls made on behalf of session.
// Requests fail with ErrSessionExpired once the session expires.
func SessionTokenSource(session *models.Session) oauth2.TokenSource {
	return sessionTokenSource{session: session, now: time.Now}
}
