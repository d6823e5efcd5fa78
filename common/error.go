package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type APIError struct {
	Status  int            `json:"-"`
	Message string         `json:"error"`
	Fields  map[string]any `json:"fields,omitempty"`
}

func (e APIError) Error() string {
	return e.Message
}

func Errf(status int, format string, args ...any) APIError {
	return APIError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// NewAPIError creates an APIError with status, message, and optional fields
func NewAPIError(status int, message string, fields map[string]any) APIError {
	return APIError{
		Status:  status,
		Message: message,
		Fields:  fields,
	}
}

// IsTimeout reports whether err came from a canceled or expired request
// context.
func IsTimeout(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Internal maps a store error to a 408 when the request context ended and a
// 500 with msg otherwise.
func Internal(err error, msg string) APIError {
	if IsTimeout(err) {
		return Errf(http.StatusRequestTimeout, "request timed out")
	}
	return Errf(http.StatusInternalServerError, "%s", msg)
}
