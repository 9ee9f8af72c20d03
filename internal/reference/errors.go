// Package reference provides clients for external terminology and drug-labeling
// services with request caching, quota tracking, and resilience.
package reference

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput indicates an empty or malformed search term. Never retried.
var ErrInvalidInput = errors.New("invalid input")

// RateLimitError is returned when the local usage quota is exhausted.
type RateLimitError struct {
	Service    string
	Window     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limit exceeded for %s window, retry after %s", e.Service, e.Window, e.RetryAfter)
}

// Recoverable reports that the call may succeed once the window rolls over.
func (e *RateLimitError) Recoverable() bool { return true }

// RemoteError represents a non-2xx response or malformed payload from a
// reference service. Recoverable only for 5xx and 429.
type RemoteError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: remote service error (status %d): %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: remote service error: %s", e.Service, e.Message)
}

// Recoverable reports whether a retry is worthwhile.
func (e *RemoteError) Recoverable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// TimeoutError indicates the remote call exceeded its deadline.
type TimeoutError struct {
	Service string
	Limit   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: call exceeded %s deadline", e.Service, e.Limit)
}

// Recoverable is always true for timeouts.
func (e *TimeoutError) Recoverable() bool { return true }
