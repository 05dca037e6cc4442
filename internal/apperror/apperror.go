// Package apperror defines the error taxonomy shared by every layer.
//
// Stores and services return these errors; only the HTTP layer knows how they
// map to status codes (see handler.writeError). Each constructor wraps one of
// the sentinel errors below, so callers check the kind with errors.Is and read
// the human-readable text with errors.As.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // human-readable error message
	Field   string // optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports a missing record. Ownership-scoped lookups use it for
// records that exist but belong to someone else as well.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation. The message is returned to the
// client verbatim.
func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Unauthorized returns an AppError for failed authentication.
// HTTP handlers map this to 401 with a Bearer challenge.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// BadRequest is used for well-formed requests that carry an unusable
// credential, such as an expired confirmation link.
func BadRequest(message string) *AppError {
	return &AppError{
		Err:     ErrBadRequest,
		Message: message,
	}
}
