package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	// ErrEmptyResponse is returned when a 2xx response carries no body to decode
	ErrEmptyResponse = errors.New("empty response")

	// ErrFileUnavailable is returned when a multipart file part cannot be opened
	ErrFileUnavailable = errors.New("file unavailable")
)

// maxPlainMessage bounds how much of a non-JSON error body is used as a message
const maxPlainMessage = 200

// NetworkError means the call could not complete at all: DNS failure, refused
// or reset connection, or a cancelled context.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError is a completed call that returned a non-2xx status
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

// ParseError means a response body did not match the expected shape
type ParseError struct {
	Err  error
	Body []byte
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err is, or wraps, a NetworkError
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsAPIError reports whether err is, or wraps, an APIError
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// IsParseError reports whether err is, or wraps, a ParseError or ErrEmptyResponse
func IsParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr) || errors.Is(err, ErrEmptyResponse)
}

// extractMessage pulls a human readable message out of an error body. It
// understands {"error":{"message"}}, {"error":"..."}, {"detail":...} and
// {"message":...}; short plain-text bodies are used as-is.
func extractMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		if strings.HasPrefix(trimmed, "<") || !utf8.ValidString(trimmed) || len(trimmed) > maxPlainMessage {
			return ""
		}
		return trimmed
	}

	switch v := payload["error"].(type) {
	case map[string]any:
		if msg, ok := v["message"].(string); ok && msg != "" {
			return msg
		}
	case string:
		if v != "" {
			return v
		}
	}

	switch v := payload["detail"].(type) {
	case string:
		if v != "" {
			return v
		}
	case []any:
		// validation errors come back as a list of {loc, msg, type}
		if len(v) > 0 {
			if first, ok := v[0].(map[string]any); ok {
				if msg, ok := first["msg"].(string); ok {
					return msg
				}
			}
		}
	}

	if msg, ok := payload["message"].(string); ok {
		return msg
	}

	return ""
}
