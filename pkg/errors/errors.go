package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDocumentNotFound      = errors.New("document not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrRateLimited           = errors.New("rate limit exceeded")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrIndexingFailure       = errors.New("indexing failure")
	ErrInternal              = errors.New("internal error")
	ErrTimeout               = errors.New("operation timed out")
)

// AppError pairs a sentinel with a human-readable message. The sentinel
// drives the HTTP status mapping; the message is what callers see.
type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *AppError {
	return &AppError{Err: sentinel, Message: message}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{Err: sentinel, Message: fmt.Sprintf(format, args...)}
}

// HTTPStatusCode maps an error chain onto a response status.
func HTTPStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrDependencyUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
