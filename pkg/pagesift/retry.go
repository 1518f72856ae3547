package pagesift

import (
	"context"
	"errors"
	"time"

	"github.com/pagesift/pagesift/internal/logger"
)

// RetryPolicy describes an exponential backoff schedule.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy returns the standard schedule: three attempts,
// one second base delay, doubling between attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2,
	}
}

// Delay returns the backoff before the attempt after the given
// zero-based attempt number: BaseDelay * Multiplier^attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		d *= p.Multiplier
	}
	return time.Duration(d)
}

// retryAttempts runs fn up to MaxAttempts times, sleeping per the
// policy between failures. fn is told whether the call is a retry.
// Attempts are strictly sequential. Context cancellation during the
// backoff wait abandons the remaining attempts.
func retryAttempts[T any](ctx context.Context, policy RetryPolicy, fn func(isRetry bool) (T, error)) (T, error) {
	var zero T

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		v, err := fn(attempt > 0)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}

		delay := policy.Delay(attempt)
		logger.Debug("attempt failed, backing off",
			"attempt", attempt+1,
			"max_attempts", attempts,
			"delay", delay,
			"error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, errors.Join(lastErr, ctx.Err())
		}
	}

	return zero, lastErr
}
