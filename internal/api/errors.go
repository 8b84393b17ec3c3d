package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sandeepkv93/datetally/internal/gate"
	"github.com/sandeepkv93/datetally/internal/validation"
)

// Error is a non-2xx answer from the backend.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

const (
	ClassNone       = "none"
	ClassValidation = "validation"
	ClassBackend    = "backend"
	ClassReauth     = "reauth"
	ClassTransport  = "transport"
)

// Classify maps err onto the client's failure taxonomy.
func Classify(err error) string {
	if err == nil {
		return ClassNone
	}
	if validation.IsValidationError(err) {
		return ClassValidation
	}
	if errors.Is(err, gate.ErrReauthRequired) {
		return ClassReauth
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return ClassBackend
	}
	return ClassTransport
}

// Message returns the text to show a user for err.
func Message(err error) string {
	switch Classify(err) {
	case ClassNone:
		return ""
	case ClassBackend:
		var apiErr *Error
		errors.As(err, &apiErr)
		return apiErr.Message
	case ClassReauth:
		return "Your session has expired. Please sign in again."
	case ClassTransport:
		return "Could not reach the server. Please try again."
	default:
		return err.Error()
	}
}

func parseError(status int, body []byte) *Error {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"error", "message", "detail"} {
			if msg := stringValue(payload[key]); msg != "" {
				return &Error{Status: status, Message: msg}
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" || strings.HasPrefix(msg, "{") || strings.HasPrefix(msg, "<") || len(msg) > 200 {
		msg = http.StatusText(status)
	}
	return &Error{Status: status, Message: msg}
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		if s := stringValue(t["message"]); s != "" {
			return s
		}
	}
	return ""
}
