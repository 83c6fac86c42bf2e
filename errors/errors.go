package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the application error type surfaced to the HTTP boundary. The
// attached status decides the response class (400/403/404/...).
type Error struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (e *Error) Error() string {
	return e.Message
}

func New(message string, status int) *Error {
	return &Error{Message: message, Status: status}
}

func Newf(status int, format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Status: status}
}

// ValidationError covers malformed or insufficient input.
func ValidationError(message string) *Error {
	return New(message, http.StatusBadRequest)
}

// NotFound also covers "requester is not a participant" so that existence
// is never leaked to non-members.
func NotFound(message string) *Error {
	return New(message, http.StatusNotFound)
}

// Forbidden covers a participant lacking the required role.
func Forbidden(message string) *Error {
	return New(message, http.StatusForbidden)
}

func Unauthorized(message string) *Error {
	return New(message, http.StatusUnauthorized)
}

// StatusOf extracts the status carried by an *Error, defaulting to 500.
func StatusOf(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
