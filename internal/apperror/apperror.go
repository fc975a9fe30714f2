// Package apperror defines the domain errors shared by the service, repository
// and handler layers.
//
// Each failure kind is a sentinel error. Constructors wrap the sentinel in an
// *AppError carrying the human-readable message, so callers can match with
// errors.Is and still show a friendly message to the client.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrMissingField       = errors.New("missing field")
	ErrWeakPassword       = errors.New("weak password")
	ErrDuplicateEmail     = errors.New("duplicate email")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

type AppError struct {
	Err     error  // sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// InvalidRequest reports a body that is not a JSON object.
func InvalidRequest(message string) *AppError {
	return &AppError{
		Err:     ErrInvalidRequest,
		Message: message,
	}
}

// MissingField reports a required field that is absent or empty after
// normalization. field names the first offending field.
func MissingField(message, field string) *AppError {
	return &AppError{
		Err:     ErrMissingField,
		Message: message,
		Field:   field,
	}
}

func WeakPassword(message string) *AppError {
	return &AppError{
		Err:     ErrWeakPassword,
		Message: message,
		Field:   "password",
	}
}

// DuplicateEmail is returned by repositories when the unique index on email
// rejects an insert. HTTP handlers map this to 409 Conflict.
func DuplicateEmail() *AppError {
	return &AppError{
		Err:     ErrDuplicateEmail,
		Message: "email already registered",
		Field:   "email",
	}
}

// StorageUnavailable wraps a startup failure of the store. cause stays in the
// chain so operators see the driver error.
func StorageUnavailable(location string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, location, cause)
}
