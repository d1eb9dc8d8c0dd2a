package client

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable covers network failures, timeouts, 408, 429 and 5xx.
	ErrUnavailable = errors.New("server unavailable")
	// ErrUnauthorized is returned for 401/403 after a refresh attempt.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRejected is returned for any other non-2xx response.
	ErrRejected = errors.New("request rejected")
)

// RemoteError describes a failed call to the server.
type RemoteError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %v: %s", e.Op, e.StatusCode, e.Err, e.Body)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// IsRetryable reports whether a failed operation may succeed if replayed
// later unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrUnauthorized)
}

// StatusCode extracts the HTTP status of err, or 0.
func StatusCode(err error) int {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}
