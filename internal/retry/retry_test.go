package retry

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(maxAttempts int, retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts:     maxAttempts,
		BaseDelay:       time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		ExponentialBase: 2.0,
		Retryable:       retryable,
	}
}

func TestDelay_ExponentialGrowth(t *testing.T) {
	p := Policy{
		BaseDelay:       1 * time.Second,
		MaxDelay:        time.Hour,
		ExponentialBase: 2.0,
	}

	assert.Equal(t, 1*time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 8*time.Second, p.Delay(3))
}

func TestDelay_CappedAtMax(t *testing.T) {
	p := Policy{
		BaseDelay:       1 * time.Second,
		MaxDelay:        10 * time.Second,
		ExponentialBase: 2.0,
	}

	assert.Equal(t, 10*time.Second, p.Delay(10))
	assert.Equal(t, 10*time.Second, p.Delay(60))
}

func TestDelay_JitterStaysWithinBounds(t *testing.T) {
	p := Policy{
		BaseDelay:       1 * time.Second,
		MaxDelay:        time.Hour,
		ExponentialBase: 2.0,
		Jitter:          true,
	}

	for i := 0; i < 200; i++ {
		d := p.Delay(2) // 4s nominal
		assert.GreaterOrEqual(t, d, 3*time.Second)
		assert.LessOrEqual(t, d, 5*time.Second)
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	var calls int
	attempts, err := Do(t.Context(), fastPolicy(3, func(error) bool { return true }),
		func(context.Context) error {
			calls++
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	var calls int
	attempts, err := Do(t.Context(), fastPolicy(5, func(error) bool { return true }),
		func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttemptsSurfacesLastError(t *testing.T) {
	var calls int
	attempts, err := Do(t.Context(), fastPolicy(3, func(error) bool { return true }),
		func(context.Context) error {
			calls++
			return errors.New("still failing")
		})

	require.Error(t, err)
	assert.EqualError(t, err, "still failing")
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	var calls int
	start := time.Now()
	p := Policy{
		MaxAttempts:     5,
		BaseDelay:       time.Second,
		MaxDelay:        time.Second,
		ExponentialBase: 2.0,
		Retryable:       func(error) bool { return false },
	}
	attempts, err := Do(t.Context(), p, func(context.Context) error {
		calls++
		return errors.New("fatal")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
	// No sleep should have happened for a non-retryable failure.
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDo_PermanentMarkOverridesPredicate(t *testing.T) {
	var calls int
	attempts, err := Do(t.Context(), fastPolicy(5, func(error) bool { return true }),
		func(context.Context) error {
			calls++
			return Permanent(errors.New("bad request"))
		})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestDo_TransientMarkOverridesPredicate(t *testing.T) {
	var calls int
	attempts, err := Do(t.Context(), fastPolicy(3, func(error) bool { return false }),
		func(context.Context) error {
			calls++
			return Transient(errors.New("busy"))
		})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestDo_ClassifiedErrorUnwraps(t *testing.T) {
	sentinel := errors.New("sentinel")
	_, err := Do(t.Context(), fastPolicy(1, nil), func(context.Context) error {
		return Permanent(sentinel)
	})

	require.ErrorIs(t, err, sentinel)
}

func TestDo_ContextCancelAbandonsPendingRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	p := Policy{
		MaxAttempts:     5,
		BaseDelay:       10 * time.Second,
		MaxDelay:        10 * time.Second,
		ExponentialBase: 2.0,
		Retryable:       func(error) bool { return true },
	}

	var calls int
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	attempts, err := Do(ctx, p, func(context.Context) error {
		calls++
		return errors.New("transient")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts, "attempt count reflects the truncated sequence")
	assert.Equal(t, 1, calls)
}

func TestDo_ZeroMaxAttemptsRunsOnce(t *testing.T) {
	var calls int
	attempts, err := Do(t.Context(), Policy{}, func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestIsNetworkError(t *testing.T) {
	opErr := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	assert.True(t, IsNetworkError(opErr))
	assert.False(t, IsNetworkError(errors.New("plain error")))
	assert.False(t, IsNetworkError(nil))
}

// Push providers surface failures as plain errors, so the provider preset
// must treat anything short of cancellation as transient.
func TestProviderPolicy_RetriesPlainProviderErrors(t *testing.T) {
	p := ProviderPolicy()
	p.BaseDelay = time.Millisecond
	p.MaxDelay = 5 * time.Millisecond

	var calls int
	attempts, err := Do(t.Context(), p, func(context.Context) error {
		calls++
		return errors.New("failed to send message to service")
	})

	require.Error(t, err)
	assert.Equal(t, p.MaxAttempts, attempts)
	assert.Equal(t, p.MaxAttempts, calls)
}

func TestProviderPolicy_DoesNotRetryCancellation(t *testing.T) {
	p := ProviderPolicy()
	p.BaseDelay = time.Millisecond

	attempts, err := Do(t.Context(), p, func(context.Context) error {
		return context.Canceled
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestPresets_SaneShapes(t *testing.T) {
	for name, p := range map[string]Policy{
		"quick":    QuickPolicy(),
		"webhook":  WebhookPolicy(),
		"database": DatabasePolicy(),
		"provider": ProviderPolicy(),
	} {
		t.Run(name, func(t *testing.T) {
			assert.GreaterOrEqual(t, p.MaxAttempts, 1)
			assert.Positive(t, p.BaseDelay)
			assert.GreaterOrEqual(t, p.MaxDelay, p.BaseDelay)
			assert.NotNil(t, p.Retryable)
		})
	}
}
