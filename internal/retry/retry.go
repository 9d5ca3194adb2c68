// Package retry is a single bounded-retry policy shared by the RPC gateway
// and the transaction executor, instead of sleep loops at every call site.
package retry

import (
	"context"
	"time"
)

// BackoffFunc returns the delay before the next attempt. The attempt index
// of the call that just failed is passed in, starting at 0.
type BackoffFunc func(attempt int, err error) time.Duration

// Policy describes how a failed operation is re-attempted.
type Policy struct {
	MaxAttempts int
	Backoff     BackoffFunc
	// Retryable decides whether an error is worth another attempt. A nil
	// predicate retries everything.
	Retryable func(err error) bool
	// OnRetry runs before the backoff sleep, e.g. to rotate an endpoint.
	OnRetry func(attempt int, err error)
	// Sleep is swapped out in tests. Nil means context-aware time.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run invokes fn until it succeeds, the attempt budget is spent, the error
// is not retryable, or the context ends. The last error is returned as-is so
// callers can match on its type.
func (p Policy) Run(ctx context.Context, fn func(attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = fn(attempt); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		var d time.Duration
		if p.Backoff != nil {
			d = p.Backoff(attempt, err)
		}
		if serr := p.sleep(ctx, d); serr != nil {
			return serr
		}
	}
	return err
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
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

// Exponential doubles the base delay on every attempt.
func Exponential(base time.Duration) BackoffFunc {
	return func(attempt int, _ error) time.Duration {
		return base << uint(attempt)
	}
}

// Fixed always waits the same delay.
func Fixed(d time.Duration) BackoffFunc {
	return func(int, error) time.Duration { return d }
}
