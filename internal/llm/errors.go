package llm

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// APIError is a non-2xx response from the completion endpoint.
type APIError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("completion API returned status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt: rate limits
// and server-side failures are, other client errors are not.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// ModelError is the terminal failure of a routed model call, raised after the
// retry budget is spent or on a non-retryable response.
type ModelError struct {
	Task  string
	Model string
	Err   error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model call failed (task=%s model=%s): %v", e.Task, e.Model, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// FormatError means the response could not be parsed even through the
// fallback text parser. Retrying the same prompt is unlikely to help.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unparsable model response: %s", e.Reason)
}

// IsRetryable classifies transport-level failures: connection errors,
// timeouts, 5xx and 429 retry; other API errors do not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var fmtErr *FormatError
	if errors.As(err, &fmtErr) {
		return false
	}

	// Unknown transport errors (connection reset, DNS, ...) are retried
	return true
}
