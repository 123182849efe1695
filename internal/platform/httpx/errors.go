// Package httpx provides HTTP response classification shared by the API client and its callers.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the client error taxonomy.
var (
	ErrNetwork      = errors.New("network error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("resource not found")
	ErrValidation   = errors.New("validation failed")
	ErrServer       = errors.New("server error")
)

// StatusError carries the HTTP status and the backend's explanation for a non-2xx response.
type StatusError struct {
	Status int
	Detail string
	kind   error
}

// Error complies with the error interface.
func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s (status %d)", e.kind, e.Status)
	}
	return fmt.Sprintf("%s (status %d): %s", e.kind, e.Status, e.Detail)
}

// Unwrap exposes the taxonomy sentinel so callers can use errors.Is.
func (e *StatusError) Unwrap() error {
	return e.kind
}

// Classify maps a status code and body to the error taxonomy. It returns nil for 2xx.
func Classify(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	return &StatusError{Status: status, Detail: DetailFromBody(body), kind: kindFor(status)}
}

func kindFor(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= 500:
		return ErrServer
	default:
		return ErrValidation
	}
}

// IsAuthFailure reports whether err means the bearer token is no longer accepted.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// Transport wraps a transport-level failure as ErrNetwork.
func Transport(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
