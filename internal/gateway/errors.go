package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNetworkTimeout  = errors.New("request timed out, please check your connection")
	ErrAuthExpired     = errors.New("session expired, please sign in again")
	ErrUnauthenticated = errors.New("not signed in")
	ErrNoAccessToken   = errors.New("no access token in refresh response")
)

// APIError is a non-2xx response from the backend. Message carries the
// server's own message when it sent one.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// ServerMessage returns the backend-provided message carried by err, if any.
func ServerMessage(err error) (string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message, true
	}
	return "", false
}

func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	apiErr := &APIError{Method: method, Path: path, Status: status}
	if json.Unmarshal(body, &payload) == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
	}
	return apiErr
}
