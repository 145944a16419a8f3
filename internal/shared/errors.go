package shared

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrBackendUnavailable indicates the remote backend could not be reached.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// SafeMessager is implemented by errors that carry a message fit for end users.
type SafeMessager interface {
	SafeMessage() string
}

// UserSafeMessage converts err into text that can be rendered in the UI
// without leaking transport details.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var safe SafeMessager
	if errors.As(err, &safe) {
		if msg := safe.SafeMessage(); msg != "" {
			return msg
		}
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "Resource not found"
	case errors.Is(err, ErrBackendUnavailable):
		return "Backend is unavailable, try again later"
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out"
	default:
		return "Something went wrong"
	}
}
