package util

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an expected, caller-facing failure. Its Message is returned
// verbatim; anything that is not an AppError is reported as a generic 500.
type AppError struct {
	Status  int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func newAppError(status int, format string, args ...any) *AppError {
	return &AppError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// ValidationError: malformed input, allocation mismatch, duplicate unique field.
func ValidationError(format string, args ...any) *AppError {
	return newAppError(http.StatusBadRequest, format, args...)
}

// AuthError: missing/invalid/expired token or bad credentials.
func AuthError(format string, args ...any) *AppError {
	return newAppError(http.StatusUnauthorized, format, args...)
}

// ForbiddenError: role or family-scope violation.
func ForbiddenError(format string, args ...any) *AppError {
	return newAppError(http.StatusForbidden, format, args...)
}

// NotFoundError: unknown id or unmatched route.
func NotFoundError(format string, args ...any) *AppError {
	return newAppError(http.StatusNotFound, format, args...)
}

// TooManyRequests is used by the rate limiter.
func TooManyRequests(format string, args ...any) *AppError {
	return newAppError(http.StatusTooManyRequests, format, args...)
}

const internalMessage = "Internal Server Error"

// StatusOf maps err onto an HTTP status and the message safe to show the caller.
func StatusOf(err error) (int, string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status, appErr.Message
	}
	return http.StatusInternalServerError, internalMessage
}

// IsOperational reports whether err is an expected AppError.
func IsOperational(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}
