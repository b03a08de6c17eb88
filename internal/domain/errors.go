package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrSessionNotFound is returned when no session exists for a quiz/user pair.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrNotAuthenticated is returned when submission is attempted without a user.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrAlreadySubmitted indicates the session already holds a final result.
	ErrAlreadySubmitted = errors.New("attempt already submitted")
)

// APIError is a typed load/submit failure carrying the backend status code.
// The embedding UI decides presentation; this layer only classifies.
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (status %d): %v", e.Message, e.Status, e.Err)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *APIError) Unwrap() error { return e.Err }

// NewAPIError builds an APIError with a user-facing message derived from the
// status code.
func NewAPIError(status int, cause error) *APIError {
	return &APIError{Status: status, Message: statusMessage(status), Err: cause}
}

func statusMessage(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "authentication required"
	case http.StatusForbidden:
		return "access to this quiz is not allowed"
	case http.StatusNotFound:
		return "quiz unavailable"
	case http.StatusUnprocessableEntity:
		return "invalid request, please retry"
	default:
		return "quiz request failed"
	}
}
