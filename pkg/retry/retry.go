package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Policy describes a bounded exponential backoff schedule. The same policy
// type drives both model calls and per-unit posting; callers configure the
// numbers independently.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          bool
}

// DefaultPolicy returns the default retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		Jitter:          true,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = time.Second
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = 30 * time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2.0
	}
	return p
}

// Backoff returns the delay before the given retry attempt (0-based).
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.normalized()

	delay := float64(p.InitialInterval)
	for i := 0; i < attempt; i++ {
		delay *= p.Multiplier
	}
	if delay > float64(p.MaxInterval) {
		delay = float64(p.MaxInterval)
	}

	if p.Jitter {
		// Spread retries out so simultaneous callers don't stampede
		delay = delay*0.75 + rand.Float64()*delay*0.25
	}

	return time.Duration(delay)
}

// delayError carries a server-supplied wait hint, e.g. a Retry-After header.
// When a retried function returns one, the hint overrides the backoff step.
type delayError struct {
	err   error
	delay time.Duration
}

func (e *delayError) Error() string { return e.err.Error() }
func (e *delayError) Unwrap() error { return e.err }

// WithDelay wraps err with an explicit wait hint for the next attempt.
func WithDelay(err error, delay time.Duration) error {
	return &delayError{err: err, delay: delay}
}

// Do runs fn up to p.MaxAttempts times, sleeping between attempts according
// to the policy. retryable decides whether an error is worth another attempt;
// a nil predicate retries everything. The last error is returned when all
// attempts are exhausted. Context cancellation stops the loop immediately.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func(ctx context.Context) error) error {
	p = p.normalized()

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			wait := p.Backoff(attempt - 1)
			var de *delayError
			if errors.As(lastErr, &de) && de.delay > 0 {
				wait = de.delay
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}

	return lastErr
}
