package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTimeout is returned when a request does not complete within the configured timeout.
	ErrTimeout = errors.New("account service timeout")
	// ErrUnavailable is returned when the account service cannot be reached.
	ErrUnavailable = errors.New("account service unavailable")
)

// StatusError carries a non-2xx reply from the account service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("account service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("account service returned status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether repeating the request may succeed.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

func isRetryable(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return false
}
