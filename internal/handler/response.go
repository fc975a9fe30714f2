package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from the API has the same shape, a single key:
//   {"error": "email already registered"}
//
// The value is a human-readable message; stack traces and driver errors
// never reach the client.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/userreg/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

const msgInternal = "internal server error"

// writeJSON sends a JSON response with the given status code.
//
// Headers and status must be set BEFORE writing the body; once Encode writes,
// header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent, we can only log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps a domain error to its HTTP status code. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrInvalidRequest),
		errors.Is(err, apperror.ErrMissingField),
		errors.Is(err, apperror.ErrWeakPassword):
		return http.StatusBadRequest // 400
	case errors.Is(err, apperror.ErrDuplicateEmail):
		return http.StatusConflict // 409
	case errors.Is(err, apperror.ErrStorageUnavailable):
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// The service layer returns apperror sentinels; it never knows about HTTP.
// This is the one place they become status codes.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)

	var appErr *apperror.AppError
	if status != http.StatusInternalServerError && errors.As(err, &appErr) {
		writeJSON(w, status, ErrorResponse{Error: appErr.Message})
		return
	}

	// NEVER expose internal error details: the raw message might contain SQL,
	// file paths, or connection strings.
	msg := msgInternal
	if status == http.StatusServiceUnavailable {
		msg = "storage unavailable"
	}
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// NotFound is the JSON 404 handler for unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
}

// MethodNotAllowed is the JSON 405 handler for known routes hit with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
}
