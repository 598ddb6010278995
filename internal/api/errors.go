package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is a non-2xx response from the backend
type Error struct {
	StatusCode int
	// Message is the server-provided "message" field
	Message string `json:"message"`
	// ErrorField is the server-provided "error" field
	ErrorField string `json:"error"`
	Path       string `json:"path"`
}

// Error returns the transport-level text, independent of the response body
func (e *Error) Error() string {
	return fmt.Sprintf("request failed with status code %d", e.StatusCode)
}

// MethodNotAllowed reports a 405, the signal that the backend does not
// accept the request shape that was used.
func (e *Error) MethodNotAllowed() bool {
	return e.StatusCode == http.StatusMethodNotAllowed
}

func newError(status int, body []byte) *Error {
	e := &Error{}
	// Non-JSON error bodies (proxies, HTML error pages) leave the fields empty.
	_ = json.Unmarshal(body, e)
	e.StatusCode = status
	return e
}

// IsMethodNotAllowed reports whether err is a 405 from the backend
func IsMethodNotAllowed(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.MethodNotAllowed()
}

// StatusCode returns the HTTP status carried by err, or 0 when err did not
// come from a backend response.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Describe picks the user-facing text for err: the server message, then the
// server error field, then the error's own text, then fallback.
// Every failure shown to a user goes through this function.
func Describe(err error, fallback string) string {
	if err == nil {
		return fallback
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.ErrorField != "" {
			return apiErr.ErrorField
		}
	}

	if text := err.Error(); text != "" {
		return text
	}
	return fallback
}
