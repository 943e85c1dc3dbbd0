package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"edupanel/internal/backend"
	"edupanel/internal/database"
	"edupanel/internal/models"
)

// newBackend starts a fake REST backend serving mux
func newBackend(t *testing.T, mux *http.ServeMux) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return backend.NewClient(srv.URL)
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations("../../migrations"))
	return db
}

func teacherSession() *models.Session {
	return &models.Session{
		ID:        "sess-teacher",
		User:      models.BackendUser{ID: "t1", Name: "Prof. Lima", Email: "lima@school.io", Role: models.RoleTeacher},
		Token:     "teacher-token",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func studentSession() *models.Session {
	return &models.Session{
		ID:        "sess-student",
		User:      models.BackendUser{ID: "s1", Name: "Bia", Email: "bia@school.io", Role: models.RoleStudent},
		Token:     "student-token",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}
