package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the single failure type returned by Client. Message is always
// safe to show to the player.
type Error struct {
	// Status is the HTTP status code, or 0 when the request never got a
	// response.
	Status  int
	Message string
	Method  string
	Path    string

	cause error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes context cancellation so callers can tell an abandoned
// request from a failed one.
func (e *Error) Unwrap() error {
	return e.cause
}

// statusError synthesizes the message used when the server gave no usable
// error body.
func statusError(method, path string, status int) *Error {
	return &Error{
		Status:  status,
		Message: fmt.Sprintf("HTTP error! status: %d", status),
		Method:  method,
		Path:    path,
	}
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsAuthError reports whether err is a 401 from the API, meaning the
// bearer token was rejected.
func IsAuthError(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsTransport reports whether err happened before any response arrived.
func IsTransport(err error) bool {
	return hasStatus(err, 0)
}

func hasStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}
