package retry

import (
	"context"
	"errors"
	"net"
	"time"
)

// QuickPolicy is tuned for latency-sensitive calls where a stale answer is
// worse than a missing one.
func QuickPolicy() Policy {
	return Policy{
		MaxAttempts:     2,
		BaseDelay:       100 * time.Millisecond,
		MaxDelay:        2 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
		Retryable:       IsNetworkError,
	}
}

// WebhookPolicy governs webhook delivery. Transport failures are classified
// by the predicate; non-2xx responses arrive already marked Transient by the
// webhook client, so both get the full attempt budget.
func WebhookPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		BaseDelay:       1 * time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
		Retryable:       IsNetworkError,
	}
}

// DatabasePolicy covers short-lived contention on persistence writes.
func DatabasePolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		BaseDelay:       50 * time.Millisecond,
		MaxDelay:        1 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
		Retryable:       func(error) bool { return true },
	}
}

// ProviderPolicy is used for push-provider calls (shoutrrr targets), which
// tolerate longer waits than the quick preset. Providers report failures as
// plain errors with no typed transport distinction, so anything short of
// cancellation is worth another attempt.
func ProviderPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		BaseDelay:       500 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
		Retryable: func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		},
	}
}

// IsNetworkError reports whether err looks like a transport-level failure
// (timeout, refused connection, DNS trouble) rather than a caller mistake.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
