package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		calls++
		if calls < 3 {
			return errProvider
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(2), func() error {
		calls++
		return errProvider
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errProvider)
	assert.Contains(t, err.Error(), "failed after 2 retries")
	assert.Equal(t, 3, calls, "first attempt plus two retries")
}

func TestRetryDoesNotRetryOpenBreaker(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(5), func() error {
		calls++
		return ErrOpen
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, 1, calls)
}

func TestRetryDoesNotRetryCancellation(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(5), func() error {
		calls++
		return context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, fastRetryConfig(10), func() error {
		calls++
		cancel()
		return errProvider
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "cancellation must stop the schedule during the wait")
}

func TestRetryWithResult(t *testing.T) {
	calls := 0
	v, err := RetryWithResult(context.Background(), fastRetryConfig(3), func() (string, error) {
		calls++
		if calls < 2 {
			return "", errProvider
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
}

func TestRetryThroughBreaker(t *testing.T) {
	// Once the breaker opens mid-schedule the retry loop stops
	// immediately instead of burning the remaining attempts.
	b := NewBreaker("test", WithMaxFailures(2), WithCooldown(time.Hour))
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(10), func() error {
		calls++
		return b.Do(func() error { return errProvider })
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, 3, calls, "two real failures, then one fast rejection")
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.True(t, cfg.Jitter)
	assert.LessOrEqual(t, cfg.InitialDelay, cfg.MaxDelay)
}
