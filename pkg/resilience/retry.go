package resilience

import (
	"context"
	"time"
)

// RetryPolicy retries a dial or request MaxRetries times with doubling
// backoff starting at Backoff.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

func NewRetryPolicy(maxRetries int, backoff time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxRetries: max(maxRetries, 0),
		Backoff:    cmpOr(backoff, 200*time.Millisecond),
	}
}

// Do returns nil on the first success. Otherwise it returns the last error
// from fn, or ctx.Err() when fn never ran.
func (r RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var last error
	for attempt := 0; ; attempt++ {
		if last = fn(ctx); last == nil {
			return nil
		}
		if attempt >= r.MaxRetries || !sleepCtx(ctx, r.Backoff<<attempt) {
			return last
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func cmpOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
