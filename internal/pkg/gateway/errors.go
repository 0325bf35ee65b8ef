package gateway

import (
	"errors"
	"fmt"

	xerrors "pipx-client/internal/pkg/errors"
)

// Kind classifies a gateway failure.
type Kind string

const (
	KindAuthExpired Kind = "auth_expired"
	KindNetwork     Kind = "network"
	KindTimeout     Kind = "timeout"
	KindHTTP        Kind = "http"
	KindMalformed   Kind = "malformed_response"
	KindRequest     Kind = "invalid_request"
)

// Error is the single error type returned by Gateway.Do. It carries enough
// for the caller to render a failure without inspecting the transport.
type Error struct {
	Kind Kind `json:"kind"`

	// Message is human readable, taken from the server payload when present.
	Message string `json:"message"`

	// StatusCode is the HTTP status, 0 when no response was received.
	StatusCode int `json:"statusCode,omitempty"`

	// Payload is the decoded error body of a non-2xx response.
	Payload map[string]any `json:"payload,omitempty"`

	// Preview and ContentType describe a body that could not be parsed.
	Preview     string `json:"preview,omitempty"`
	ContentType string `json:"contentType,omitempty"`

	IsNetworkError bool `json:"isNetworkError"`
	IsTimeoutError bool `json:"isTimeoutError"`

	// Attempts is how many times the request was sent.
	Attempts int `json:"attempts"`

	Err error `json:"-"`
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient.
func (e *Error) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindTimeout
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}

// IsAuthExpired reports whether err is the expired-session short-circuit.
func IsAuthExpired(err error) bool {
	return errors.Is(err, xerrors.ErrSessionExpired)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	if gwErr, ok := AsError(err); ok {
		return gwErr.StatusCode
	}
	return 0
}

func authExpiredError() *Error {
	return &Error{
		Kind:    KindAuthExpired,
		Message: "Your session has expired. Please log in again.",
		Err:     xerrors.ErrSessionExpired,
	}
}
