package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/neasmart-core/internal/controller"
	"github.com/nerrad567/neasmart-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/neasmart-core/internal/installation"
	"github.com/nerrad567/neasmart-core/internal/referential"
	"github.com/nerrad567/neasmart-core/internal/session"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeInternal    = "internal_error"
	ErrCodeUnavailable = "unavailable"
	ErrCodeBadGateway  = "bad_gateway"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps controller, model and session errors to a status.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, controller.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, installation.ErrNotReady),
		errors.Is(err, referential.ErrNoReferentials),
		errors.Is(err, session.ErrNotAuthenticated),
		errors.Is(err, session.ErrClosed),
		errors.Is(err, mqtt.ErrUnresolvedTopic):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	case errors.Is(err, installation.ErrModel),
		errors.Is(err, controller.ErrNoValue):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, session.ErrPublishFailures),
		errors.Is(err, mqtt.ErrNotConnected),
		errors.Is(err, mqtt.ErrPublishFailed):
		writeError(w, http.StatusBadGateway, ErrCodeBadGateway, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
