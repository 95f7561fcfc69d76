// Package icloud provides an HTTP client for the iCloud Drive web API
// with cookie-session authentication, one-shot reauthorization on session
// expiry, and error classification.
package icloud

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, icloud.ErrNotFound) to check.
var (
	ErrBadRequest     = errors.New("icloud: bad request")
	ErrUnauthorized   = errors.New("icloud: unauthorized")
	ErrForbidden      = errors.New("icloud: forbidden")
	ErrNotFound       = errors.New("icloud: not found")
	ErrConflict       = errors.New("icloud: conflict")
	ErrSessionExpired = errors.New("icloud: session expired")
	ErrThrottled      = errors.New("icloud: throttled")
	ErrServerError    = errors.New("icloud: server error")

	// ErrNoSession means no session file was found — the user never signed in.
	ErrNoSession = errors.New("icloud: not signed in")
)

// statusMisdirected is the status the iCloud API returns when the session
// cookies have expired and the caller must reauthenticate.
const statusMisdirected = 421

// APIError wraps a sentinel error with the HTTP status code and the raw
// response body for debugging.
type APIError struct {
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	return fmt.Sprintf("icloud: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case statusMisdirected:
		return ErrSessionExpired
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}
