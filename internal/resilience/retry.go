package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig shapes the exponential backoff schedule.
type RetryConfig struct {
	// MaxRetries is the number of retry attempts after the first call.
	MaxRetries int

	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration

	// Multiplier grows the delay after each attempt.
	Multiplier float64

	// Jitter randomizes delays to spread synchronized retries.
	Jitter bool
}

// DefaultRetryConfig suits interactive search latency budgets: two
// quick retries, nothing past a second and a half.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   2,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     1500 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retry runs fn with exponential backoff. Context cancellation stops
// the schedule immediately, both between attempts and during waits.
// An open breaker error is never retried: the breaker has already
// decided the provider is down.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, ErrOpen) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if attempt >= cfg.MaxRetries {
			break
		}

		wait := delay
		if cfg.Jitter {
			wait = time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

// RetryWithResult is Retry for functions returning a value.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var result T
	err := Retry(ctx, cfg, func() error {
		var callErr error
		result, callErr = fn()
		return callErr
	})
	return result, err
}
