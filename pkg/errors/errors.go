package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types. Callers branch on these with errors.Is; the
// constructors below attach the HTTP status and machine-readable code.
var (
	ErrValidation   = errors.New("validation error")
	ErrReferential  = errors.New("referenced resource not found")
	ErrState        = errors.New("operation illegal for current state")
	ErrUniqueness   = errors.New("duplicate key")
	ErrInconsistent = errors.New("inconsistent state")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal server error")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Common error constructors

// Validation reports malformed or out-of-range input, field by field.
func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// ValidationMsg reports a single-condition validation failure.
func ValidationMsg(message string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// Referential reports an id that does not exist within the caller's school.
// Cross-tenant ids get the same answer as missing ids so that existence
// never leaks across tenants.
func Referential(resource string) *AppError {
	return &AppError{
		Err:        ErrReferential,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

// State reports an operation that is illegal for the entity's current
// lifecycle state. The message echoes the actual and expected states so the
// caller can explain the failure precisely.
func State(message string) *AppError {
	return &AppError{
		Err:        ErrState,
		Code:       "STATE_CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// Uniqueness reports a duplicate generation key.
func Uniqueness(message string) *AppError {
	return &AppError{
		Err:        ErrUniqueness,
		Code:       "DUPLICATE",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// Inconsistent reports that a later step of a logical multi-write operation
// failed after an earlier step committed. It must always propagate to the
// caller; swallowing it leaves a broken window history behind.
func Inconsistent(message string) *AppError {
	return &AppError{
		Err:        ErrInconsistent,
		Code:       "INCONSISTENT_STATE",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// BadRequest reports a request that could not be decoded.
func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// Unauthorized reports a request with missing identity context.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// Internal reports an unexpected failure.
func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
