package handler

import (
	"errors"
	"net/http"
)

// ErrNilResponse indicates a handler returned nil instead of a Response.
var ErrNilResponse = errors.New("handler returned nil response")

// HTTPError carries an HTTP status and a machine-readable key.
type HTTPError struct {
	Code    int
	Key     string
	Message string
}

// Error returns the message, or the status text when none was set.
func (e HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Code)
}

// NewHTTPError creates an HTTPError.
func NewHTTPError(code int, key, message string) HTTPError {
	return HTTPError{Code: code, Key: key, Message: message}
}
