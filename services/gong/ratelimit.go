package gong

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinInterval is the default spacing between outbound Gong requests.
const DefaultMinInterval = 100 * time.Millisecond

// Limiter paces outbound requests so at least minInterval elapses between
// acquires. Bucket of size one: it smooths bursts, it does not enforce a
// quota. Acquire only ever delays; the sole failure mode is a cancelled
// context.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a limiter with the given spacing. Non-positive intervals
// fall back to DefaultMinInterval.
func NewLimiter(minInterval time.Duration) *Limiter {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// Acquire blocks until the spacing since the previous acquire has elapsed.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
