package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"edupanel/internal/backend"
)

func TestRespondWithErrorWritesStatusAndBody(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondWithError(recorder, 418, "Teapot", "", nil)

	if recorder.Code != 418 {
		t.Fatalf("expected status 418, got %d", recorder.Code)
	}

	body := strings.TrimSpace(recorder.Body.String())
	if body != "Teapot" {
		t.Fatalf("expected body 'Teapot', got %q", body)
	}
}

func TestRespondWithErrorLogsMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := log.Default()
	originalOutput := logger.Writer()
	logger.SetOutput(&buf)
	defer logger.SetOutput(originalOutput)

	recorder := httptest.NewRecorder()
	err := errors.New("boom")

	respondWithError(recorder, 500, "Failed to save grade", "", err)

	logOutput := buf.String()
	if !strings.Contains(logOutput, "Failed to save grade") {
		t.Fatalf("expected log to include user message, got %q", logOutput)
	}
	if !strings.Contains(logOutput, "boom") {
		t.Fatalf("expected log to include error, got %q", logOutput)
	}
}

func TestBackendStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"not found", &backend.APIError{StatusCode: http.StatusNotFound}, http.StatusNotFound, ErrNotFound},
		{"wrapped unauthorized", fmt.Errorf("failed to load: %w", &backend.APIError{StatusCode: http.StatusUnauthorized}), http.StatusForbidden, ErrForbidden},
		{"server error", &backend.APIError{StatusCode: http.StatusInternalServerError}, http.StatusBadGateway, ErrBackendUnavailable},
		{"timeout", fmt.Errorf("call: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, ErrBackendUnavailable},
		{"other", errors.New("disk full"), http.StatusInternalServerError, ErrInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := backendStatus(tt.err)
			if status != tt.wantStatus || msg != tt.wantMsg {
				t.Errorf("backendStatus() = %d %q, want %d %q", status, msg, tt.wantStatus, tt.wantMsg)
			}
		})
	}
}
