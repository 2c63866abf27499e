// Package retry provides a bounded exponential-backoff retry policy for
// transient infrastructure failures (blob and queue I/O).
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy configures the retry behavior.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// InitialDelay is the delay before the second attempt.
	InitialDelay time.Duration
	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration
	// BackoffFactor multiplies the delay after each failed attempt.
	BackoffFactor float64
	// OnRetry, if set, is called before each backoff sleep with the attempt
	// number that just failed, the delay before the next attempt and the error.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Default returns the standard policy: 3 attempts, 1s initial delay, doubling.
func Default() *Policy {
	return &Policy{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Do executes fn under the policy. Any error is treated as transient. An
// honored context cancellation aborts the loop immediately and returns the
// context error; on exhaustion the last error is returned wrapped.
func Do(ctx context.Context, p *Policy, fn func() error) error {
	_, err := DoWithResult(ctx, p, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult executes fn under the policy and returns its result.
func DoWithResult[T any](ctx context.Context, p *Policy, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := p.InitialDelay

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * p.BackoffFactor)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return zero, fmt.Errorf("max attempts (%d) exceeded: %w", p.MaxAttempts, lastErr)
}
