package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edupanel/internal/models"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestTeacherCorrectionRequest(t *testing.T) {
	var gotMethod, gotPath, gotAuth string
	var gotBody TeacherCorrectionRequest
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotAuth = r.Method, r.URL.Path, r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	})

	c := NewClient(srv.URL).WithTokenSource(BearerToken("tok-123"))
	err := c.TeacherCorrection(context.Background(), "ex 1", "s1", 7.5, 10)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/exercises/ex 1/teacher-correction", gotPath)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, TeacherCorrectionRequest{UserID: "s1", FinalGrade: 7.5, Points: 10}, gotBody)
}

func TestUnauthenticatedClientSendsNoToken(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"token":"abc","user":{"id":"u1","name":"Ana","email":"a@x.io","role":"teacher"}}`))
	})

	resp, err := NewClient(srv.URL).Login(context.Background(), "a@x.io", "secret")
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.Token)
	assert.True(t, resp.User.IsTeacher())
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{"message string", http.StatusBadRequest, `{"message":"invalid grade"}`, "invalid grade"},
		{"message list", http.StatusBadRequest, `{"message":["name is required","email is invalid"]}`, "name is required; email is invalid"},
		{"error field", http.StatusNotFound, `{"error":"not found"}`, "not found"},
		{"plain text", http.StatusInternalServerError, "upstream exploded", "upstream exploded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := NewClient(srv.URL).GetExercise(context.Background(), "e1")
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}
}

func TestErrorMessageTruncatesOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", 199) + strings.Repeat("é", 10)

	msg := errorMessage([]byte(body))

	assert.True(t, utf8.ValidString(msg))
	assert.Equal(t, strings.Repeat("a", 199)+"é", msg)
	assert.Equal(t, "nota de 7,5 é inválida", errorMessage([]byte("nota de 7,5 é inválida")))
}

func TestIsNotFoundAndUnauthorized(t *testing.T) {
	assert.True(t, IsNotFound(&APIError{StatusCode: 404}))
	assert.False(t, IsNotFound(io.EOF))
	assert.True(t, IsUnauthorized(&APIError{StatusCode: 401}))
	assert.True(t, IsUnauthorized(&APIError{StatusCode: 403}))
}

func TestExerciseDecodesVariant(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/exercises/e9", r.URL.Path)
		w.Write([]byte(`{"id":"e9","statement":"Pick","type":"multiple_choice","answer":"1","grade":2,"options":["a","b"]}`))
	})

	ex, err := NewClient(srv.URL).GetExercise(context.Background(), "e9")
	require.NoError(t, err)
	assert.Equal(t, models.ExerciseMultipleChoice, ex.Type)
	assert.Equal(t, []string{"a", "b"}, ex.Choices)
}

func TestAssociationsQuery(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lesson-plan-contents/associations", r.URL.Path)
		assert.Equal(t, "c1", r.URL.Query().Get("content_id"))
		assert.Equal(t, "exercise_list", r.URL.Query().Get("content_type"))
		w.Write([]byte(`[{"content_id":"c1","content_type":"exercise_list","lesson_plan_id":"p1"}]`))
	})

	out, err := NewClient(srv.URL).Associations(context.Background(), "c1", models.ContentExerciseList)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "p1", out[0].LessonPlanID)
}

func TestUpdateAttemptGradeAndCompletion(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user-progress/attempts/t1/grade":
			var body map[string]float64
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, 3.5, body["grade"])
			w.WriteHeader(http.StatusNoContent)
		case "/exercise_lists/l1/completed":
			w.Write([]byte(`{"completed":false,"deadlinePassed":true}`))
		default:
			http.NotFound(w, r)
		}
	})

	c := NewClient(srv.URL)
	require.NoError(t, c.UpdateAttemptGrade(context.Background(), "t1", 3.5))

	done, err := c.ListCompletion(context.Background(), "l1")
	require.NoError(t, err)
	assert.False(t, done.Completed)
	assert.True(t, done.DeadlinePassed)
}

func TestUpload(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "notes.pdf", hdr.Filename)
		assert.Equal(t, "hello", string(data))
		w.Write([]byte(`{"url":"https://cdn.example.com/notes.pdf"}`))
	})

	u, err := NewClient(srv.URL).Upload(context.Background(), "notes.pdf", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/notes.pdf", u)
}

func TestRateLimitHonorsContext(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	c := NewClient(srv.URL, WithRateLimit(0.5))

	_, err := c.Ranking(context.Background())
	require.NoError(t, err)

	// the single burst token is spent; the next request would wait two seconds
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Ranking(ctx)
	require.Error(t, err)
}

func TestRequestHonorsCancellation(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(srv.URL).ExerciseAnswers(ctx, "e1")
	require.Error(t, err)
}

func TestAvatarURL(t *testing.T) {
	g := NewGameClient("http://game.local", "https://assets.example.com/9.x/")
	tests := []struct {
		name   string
		avatar models.Avatar
		want   string
	}{
		{"absolute kept", models.Avatar{ImageURL: "https://img.example.com/a.png"}, "https://img.example.com/a.png"},
		{"relative joined", models.Avatar{ImageURL: "/bot/svg?seed=x"}, "https://assets.example.com/9.x/bot/svg?seed=x"},
		{"seed", models.Avatar{Seed: "Felix Cat"}, "https://assets.example.com/9.x/adventurer/svg?seed=Felix+Cat"},
		{"name fallback", models.Avatar{Name: "Bob"}, "https://assets.example.com/9.x/adventurer/svg?seed=Bob"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.AvatarURL(tt.avatar))
		})
	}
}

func TestGamePurchase(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/characters/u1/purchase", r.URL.Path)
		assert.Equal(t, "Bearer game-tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"user_id":"u1","coins":40,"items":["hat"]}`))
	})

	g := NewGameClient(srv.URL, "https://assets.example.com").WithTokenSource(BearerToken("game-tok"))
	ch, err := g.Purchase(context.Background(), "u1", "hat")
	require.NoError(t, err)
	assert.Equal(t, 40, ch.Coins)
	assert.True(t, ch.Owns("hat"))
}
