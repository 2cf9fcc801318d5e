package client

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned when the login form is rejected.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrNoSessionCookie is returned when no logged-in session exists.
	ErrNoSessionCookie = errors.New("no session cookie; log in first")

	// ErrNoConsoles is returned when the account has no console to attach to.
	ErrNoConsoles = errors.New("no consoles found")
)

// HTTPError represents an HTTP-related error with status code
type HTTPError struct {
	StatusCode int
	Status     string
	Operation  string // e.g., "list consoles", "fetch console frame"
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s failed: HTTP %d: %s", e.Operation, e.StatusCode, e.Status)
}

// NewHTTPError creates a new HTTPError
func NewHTTPError(statusCode int, status, operation string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Status:     status,
		Operation:  operation,
	}
}

// IsHTTPError checks if an error is an HTTPError
func IsHTTPError(err error) bool {
	var e *HTTPError
	return errors.As(err, &e)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var e *HTTPError
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}
