// Package apierrors classifies login and usage-service failures into a small
// taxonomy callers can match with errors.Is while keeping the HTTP detail.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kinds for errors.Is matching
var (
	ErrInvalidAuth   = errors.New("invalid authentication")
	ErrCannotConnect = errors.New("cannot connect")
	ErrNotFound      = errors.New("not found")
	ErrNotLoggedIn   = errors.New("not logged in: call Login first")
)

// AuthError represents an authentication failure: bad credentials, an
// expired or rejected bearer token, or a malformed SSO redirect.
type AuthError struct {
	StatusCode int
	Endpoint   string
	Message    string
	Err        error
}

func (e *AuthError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("authentication failed (status %d): %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ErrInvalidAuth }

// ConnectError represents any other failure reaching the service: a non-2xx
// status, a transport error or an undecodable body.
type ConnectError struct {
	StatusCode int
	Endpoint   string
	Message    string
	Retryable  bool
	Err        error
}

func (e *ConnectError) Error() string {
	var msg string
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("API error (%d) at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	} else {
		msg = fmt.Sprintf("request to %s failed: %s", e.Endpoint, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s (caused by: %v)", msg, e.Err)
	}
	return msg
}

func (e *ConnectError) Unwrap() error { return e.Err }

func (e *ConnectError) Is(target error) bool { return target == ErrCannotConnect }

// NotFoundError is returned when a named resource, such as a utility, is unknown
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NewStatusError classifies a non-success HTTP response
func NewStatusError(statusCode int, endpoint, body string) error {
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return &AuthError{StatusCode: statusCode, Endpoint: endpoint, Message: body}
	}
	return &ConnectError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Message:    body,
		Retryable:  isRetryableStatus(statusCode),
	}
}

// NewTransportError wraps a connection, timeout or decoding failure
func NewTransportError(endpoint string, err error) error {
	return &ConnectError{
		Endpoint:  endpoint,
		Message:   "transport error",
		Retryable: true,
		Err:       err,
	}
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.StatusCode
	}
	var connErr *ConnectError
	if errors.As(err, &connErr) {
		return connErr.StatusCode
	}
	return 0
}

// IsRetryable reports whether a caller's backoff policy should retry err
func IsRetryable(err error) bool {
	var connErr *ConnectError
	return errors.As(err, &connErr) && connErr.Retryable
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
