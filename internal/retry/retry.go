// Package retry provides a generic exponential-backoff runner shared by the
// external-call sites in the application (webhook delivery, push providers,
// database writes). The backoff shape and failure classification live in a
// Policy value so call sites differ only in the preset they pass in.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Policy defines retry behavior for one class of operation.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first (≥1).
	MaxAttempts int
	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the computed backoff.
	MaxDelay time.Duration
	// ExponentialBase is the backoff multiplier per attempt.
	ExponentialBase float64
	// Jitter applies ±25% uniform randomization to each delay.
	Jitter bool
	// Retryable classifies failures. A nil predicate retries nothing.
	// Explicit Permanent/Transient marks on the error take precedence.
	Retryable func(error) bool
}

// classified wraps an error with an explicit retryable flag, overriding the
// policy predicate. Operations use this to carry their own classification
// instead of relying on error-string sniffing at the call site.
type classified struct {
	err       error
	retryable bool
}

func (c *classified) Error() string { return c.err.Error() }
func (c *classified) Unwrap() error { return c.err }

// Permanent marks err as never retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &classified{err: err, retryable: false}
}

// Transient marks err as always retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classified{err: err, retryable: true}
}

// shouldRetry resolves the classification for err: an explicit mark wins,
// otherwise the policy predicate decides.
func (p Policy) shouldRetry(err error) bool {
	var c *classified
	if errors.As(err, &c) {
		return c.retryable
	}
	if p.Retryable == nil {
		return false
	}
	return p.Retryable(err)
}

// Delay returns the backoff before retry number attempt (0-indexed):
// min(BaseDelay × ExponentialBase^attempt, MaxDelay), with optional ±25%
// jitter clamped to a non-negative value.
func (p Policy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.ExponentialBase, float64(attempt))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter {
		d += d * 0.25 * (rand.Float64()*2 - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Do runs op under the policy. It returns the number of attempts actually
// made together with the final error, nil on success. Non-retryable failures
// return immediately without sleeping. Context cancellation during a backoff
// wait abandons the remaining retries and returns the context error, so an
// interrupted delivery reports a truncated attempt count.
func Do(ctx context.Context, p Policy, op func(context.Context) error) (int, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return attempt + 1, nil
		}
		lastErr = err

		if !p.shouldRetry(err) || attempt == attempts-1 {
			return attempt + 1, lastErr
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt + 1, ctx.Err()
		case <-timer.C:
		}
	}
	return attempts, lastErr
}
