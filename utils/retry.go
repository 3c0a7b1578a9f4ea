package utils

import (
	"context"
	"math"
	"time"
)

// RetryConfig holds the parameters for the retry strategy. It carries no
// per-call state and can be shared by every caller.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	Logger       *Logger

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Delay returns the wait after the given failed attempt (1-based):
// InitialDelay * Multiplier^(attempt-1).
func (r *RetryConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := r.Multiplier
	if mult < 1 {
		mult = 1
	}
	return time.Duration(float64(r.InitialDelay) * math.Pow(mult, float64(attempt-1)))
}

// Do executes fn with exponential back-off retry logic.
func (r *RetryConfig) Do(ctx context.Context, operationName string, fn func() error) error {
	_, err := Retry(ctx, r, operationName, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Retry runs fn until it succeeds or MaxAttempts is exhausted. The error of
// the final attempt is returned as is. A cancelled ctx ends the backoff wait
// early and returns the last error seen.
func Retry[T any](ctx context.Context, r *RetryConfig, operationName string, fn func() (T, error)) (T, error) {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := r.sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var (
		result  T
		lastErr error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}
		if attempt == attempts {
			break
		}

		delay := r.Delay(attempt)
		if r.Logger != nil {
			r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v, retrying in %v",
				operationName, attempt, attempts, lastErr, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return result, lastErr
		}
	}

	if r.Logger != nil && attempts > 1 {
		r.Logger.Error("[retry] %s gave up after %d attempts: %v", operationName, attempts, lastErr)
	}
	return result, lastErr
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
