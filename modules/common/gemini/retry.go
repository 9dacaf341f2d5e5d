package gemini

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy - bounded retry of one underlying model call inside a single region.
// Quota errors are not retried here; they are left for the region fallback.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64

	// Timer drives the waits between attempts; nil uses a real timer
	Timer backoff.Timer
}

// DefaultRetryPolicy - 3 attempts, exponential wait from 2s capped at 10s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 2 * time.Second,
		MaxInterval:     10 * time.Second,
		Multiplier:      2,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	retries := 0
	if p.MaxAttempts > 1 {
		retries = p.MaxAttempts - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Do - runs call until it succeeds, hits a quota error, the context ends or attempts run out.
// onRetry is invoked before each wait with the failed attempt number.
func (p RetryPolicy) Do(
	ctx context.Context,
	call func(ctx context.Context) (string, error),
	onRetry func(attempt int, err error, wait time.Duration),
) (string, error) {
	var (
		text     string
		attempts int
	)

	op := func() error {
		attempts++
		out, err := call(ctx)
		if err == nil {
			text = out
			return nil
		}
		if IsResourceExhausted(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		if onRetry != nil {
			onRetry(attempts, err, wait)
		}
	}

	err := backoff.RetryNotifyWithTimer(op, p.backOff(ctx), notify, p.Timer)
	if err == nil {
		return text, nil
	}
	if IsResourceExhausted(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}
	return "", &TransientCallError{Attempts: attempts, Err: err}
}
