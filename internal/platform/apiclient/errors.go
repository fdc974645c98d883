package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthorized matches any API error caused by a missing, expired or
// rejected bearer token. Use errors.Is.
var ErrUnauthorized = errors.New("unauthorized")

// Kind classifies API failures.
type Kind int

const (
	// KindNetwork covers transport failures and unreadable responses.
	KindNetwork Kind = iota + 1
	// KindHTTP is a non-2xx HTTP status.
	KindHTTP
	// KindBusiness is a 2xx response whose envelope reports failure.
	KindBusiness
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindBusiness:
		return "business"
	default:
		return "unknown"
	}
}

// Error is returned by every Client call that does not succeed. Message is
// suitable for showing to the user as-is.
type Error struct {
	Kind       Kind
	Method     string
	Path       string
	StatusCode int
	Code       int
	Message    string
	RequestID  string
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrUnauthorized) work for 401 responses, for
// envelopes carrying code 401 and for business errors whose message says
// the token expired or is invalid.
func (e *Error) Is(target error) bool {
	if target != ErrUnauthorized {
		return false
	}
	if e.StatusCode == http.StatusUnauthorized || e.Code == http.StatusUnauthorized {
		return true
	}
	return e.Kind == KindBusiness && tokenMessage(e.Message)
}

func tokenMessage(msg string) bool {
	m := strings.ToLower(msg)
	if !strings.Contains(m, "token") {
		return false
	}
	return strings.Contains(m, "expired") || strings.Contains(m, "invalid") || strings.Contains(m, "hết hạn")
}

func httpError(method, path string, status int, message, requestID string) *Error {
	if message == "" {
		message = fmt.Sprintf("HTTP error! status: %d", status)
	}
	return &Error{
		Kind:       KindHTTP,
		Method:     method,
		Path:       path,
		StatusCode: status,
		Message:    message,
		RequestID:  requestID,
	}
}

// Message returns the user-facing text of err: the server message for API
// errors, or fallback for anything without one.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" && apiErr.Kind != KindNetwork {
		return apiErr.Message
	}
	if fallback != "" {
		return fallback
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
