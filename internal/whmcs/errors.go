package whmcs

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError reports invalid client construction input. It is raised
// before any network I/O happens.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AuthError reports an authentication failure from the upstream API.
// Authentication failures are deterministic for a given credential pair
// and are never retried.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

// APIError reports a structured error returned by the upstream API, or a
// malformed transport response (non-2xx status, non-JSON body).
type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("whmcs api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("whmcs api error: %s", e.Message)
}

// ConnectionError reports a transport-level failure reaching the upstream.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to whmcs api: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TimeoutError reports a request that exceeded the configured deadline.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out after %s", e.Timeout)
}

// IsRetryable reports whether err is a transient failure worth retrying.
// Only connection and timeout failures qualify; authentication and API
// errors are deterministic and retrying them wastes the attempt budget.
func IsRetryable(err error) bool {
	var connErr *ConnectionError
	var timeoutErr *TimeoutError
	return errors.As(err, &connErr) || errors.As(err, &timeoutErr)
}

// BackoffPolicy is a bounded exponential backoff schedule. MaxAttempts is
// the total number of tries including the first one.
type BackoffPolicy struct {
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultBackoff matches the retry budget the upstream tolerates well:
// three attempts with 1s, 2s waits capped at 10s.
var DefaultBackoff = BackoffPolicy{
	BaseDelay:   time.Second,
	Multiplier:  2,
	MaxDelay:    10 * time.Second,
	MaxAttempts: 3,
}

// Delay returns the wait before the attempt following the given one.
// Attempts are numbered from 1.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
