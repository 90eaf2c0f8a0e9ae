package graph

import (
	"errors"
	"fmt"
	"net/http"
)

// errorResponse is the Graph API's error envelope.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is a non-2xx Graph API response.
type APIError struct {
	Operation  string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: graph api %d (%s): %s", e.Operation, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: graph api %d: %s", e.Operation, e.StatusCode, e.Message)
}

func newAPIError(operation string, status int, code, message string) *APIError {
	return &APIError{Operation: operation, StatusCode: status, Code: code, Message: message}
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports whether err is a 401 from the API, usually an
// expired or mis-scoped token.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsThrottled reports whether err is a 429 from the API.
func IsThrottled(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}
