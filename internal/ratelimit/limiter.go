// Package ratelimit implements fixed-window request counters guarding
// sensitive endpoints.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrLimitExceeded is returned once a key has used up its window budget.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// Decision describes the state of a key after one check-and-increment.
type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long a rejected caller should wait, rounded up to a second.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	return (wait + time.Second - 1) / time.Second * time.Second
}

// Limiter counts attempts per key within a fixed window.
//
// CheckAndIncrement always records the attempt. The call that pushes the
// count past maxAttempts, and every call after it in the same window,
// returns ErrLimitExceeded alongside the decision.
type Limiter interface {
	CheckAndIncrement(ctx context.Context, key string, maxAttempts int, window time.Duration) (Decision, error)
}

func decide(count, maxAttempts int, resetAt time.Time) (Decision, error) {
	d := Decision{
		Allowed:   count <= maxAttempts,
		Count:     count,
		Limit:     maxAttempts,
		Remaining: maxAttempts - count,
		ResetAt:   resetAt,
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		return d, ErrLimitExceeded
	}
	return d, nil
}
