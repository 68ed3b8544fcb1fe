// Package apperror defines the error taxonomy shared by the repository,
// service and handler layers.
//
// Every domain failure is an *AppError wrapping one of the sentinel errors
// below. Callers test the category with errors.Is and read the human-readable
// message through errors.As; the HTTP layer maps categories to status codes.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUpstreamAuth marks a failed exchange or profile fetch against the
	// identity provider.
	ErrUpstreamAuth = errors.New("upstream authentication failed")
	// ErrConfig marks an operation that needs configuration the server was
	// started without (e.g. GitHub client credentials).
	ErrConfig = errors.New("configuration error")
)

type AppError struct {
	Err     error  // category sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error, kept for logs only
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the category sentinel and the cause so errors.Is works
// against either.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

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

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned when the caller presented no usable identity,
// or an identity that no longer resolves to a user.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// UpstreamAuth wraps a failure reported by the external identity provider.
func UpstreamAuth(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrUpstreamAuth,
		Message: message,
		Cause:   cause,
	}
}

// Config reports a missing or invalid configuration value.
func Config(setting string) *AppError {
	return &AppError{
		Err:     ErrConfig,
		Message: fmt.Sprintf("%s is not configured", setting),
		Field:   setting,
	}
}
