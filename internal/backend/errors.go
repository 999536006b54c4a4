package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds derived from backend HTTP status codes.
var (
	ErrFieldValidation    = errors.New("invalid data")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionExpired     = errors.New("session expired")
	ErrServer             = errors.New("server error")
	ErrNotFound           = errors.New("not found")
)

// Error is a non-2xx backend response. Kind is one of the sentinel errors
// above, so callers can use errors.Is.
type Error struct {
	Kind     error
	Status   int
	Message  string
	Endpoint string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (%s returned status %d)", e.Kind, e.Endpoint, e.Status)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type fieldIssue struct {
	Msg string `json:"msg"`
}

// statusError classifies a non-2xx response. A 401 on a call made with a
// bearer token means the session expired; without a token it means the
// submitted credentials were rejected.
func statusError(endpoint string, status int, body []byte, authenticated bool) *Error {
	kind := ErrServer
	switch {
	case status == http.StatusUnprocessableEntity:
		kind = ErrFieldValidation
	case status == http.StatusUnauthorized && authenticated:
		kind = ErrSessionExpired
	case status == http.StatusUnauthorized:
		kind = ErrInvalidCredentials
	}

	return &Error{Kind: kind, Status: status, Message: detailMessage(body), Endpoint: endpoint}
}

// detailMessage extracts the "detail" field, which is either a single message
// or a list of {msg} objects.
func detailMessage(body []byte) string {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Detail) == 0 {
		return ""
	}

	var single string
	if err := json.Unmarshal(parsed.Detail, &single); err == nil {
		return single
	}

	var issues []fieldIssue
	if err := json.Unmarshal(parsed.Detail, &issues); err == nil {
		msgs := make([]string, 0, len(issues))
		for _, issue := range issues {
			if issue.Msg != "" {
				msgs = append(msgs, issue.Msg)
			}
		}
		return strings.Join(msgs, ", ")
	}

	return string(parsed.Detail)
}

// Message composes a user-facing message for err.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return err.Error()
	}

	switch {
	case errors.Is(apiErr.Kind, ErrFieldValidation):
		return joinMessage("Invalid data", apiErr.Message)
	case errors.Is(apiErr.Kind, ErrInvalidCredentials):
		return joinMessage("Invalid credentials", apiErr.Message)
	case errors.Is(apiErr.Kind, ErrSessionExpired):
		return "Session expired, please sign in again"
	case errors.Is(apiErr.Kind, ErrNotFound):
		return joinMessage("Not found", apiErr.Message)
	default:
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return "Server error"
	}
}

func joinMessage(prefix, detail string) string {
	if detail == "" {
		return prefix
	}

	return prefix + ": " + detail
}
