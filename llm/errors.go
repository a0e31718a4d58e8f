package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of a failed response body is kept in errors.
const maxErrorBody = 200

// endpointNotFoundMarker is what the proxy puts in the body when a model
// alias has no serving endpoint.
const endpointNotFoundMarker = "No endpoints found"

// StatusError is a non-2xx response from a completion endpoint.
type StatusError struct {
	StatusCode int
	Body       string // Truncated to maxErrorBody runes
}

// NewStatusError creates a StatusError, truncating the body.
func NewStatusError(statusCode int, body string) *StatusError {
	return &StatusError{StatusCode: statusCode, Body: truncate(body, maxErrorBody)}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("LLM request failed (%d): %s", e.StatusCode, e.Body)
}

// InvalidResponseError means the completion payload carried no message.
type InvalidResponseError struct {
	Model string
}

func (e *InvalidResponseError) Error() string {
	return "LLM returned no message."
}

// IsEndpointNotFound reports whether err is the proxy's "model has no
// endpoint" failure, the only failure that triggers the fallback model.
func IsEndpointNotFound(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusNotFound &&
		strings.Contains(statusErr.Body, endpointNotFoundMarker)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
