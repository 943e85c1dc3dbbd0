package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"edupanel/internal/backend"
)

func respondWithError(w http.ResponseWriter, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		log.Printf("%s: %v", logMsg, err)
	}

	http.Error(w, userMsg, status)
}

// backendStatus maps a failed backend call to the status and message shown to the user
func backendStatus(err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrBackendUnavailable
	case backend.IsNotFound(err):
		return http.StatusNotFound, ErrNotFound
	case backend.IsUnauthorized(err):
		return http.StatusForbidden, ErrForbidden
	case backend.StatusCode(err) != 0:
		return http.StatusBadGateway, ErrBackendUnavailable
	}
	return http.StatusInternalServerError, ErrInternalServerError
}

func respondWithBackendError(w http.ResponseWriter, logMsg string, err error) {
	status, msg := backendStatus(err)
	respondWithError(w, status, msg, logMsg, err)
}
