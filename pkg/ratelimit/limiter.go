package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow takes a slot if one is free
	Allow() bool
	// Wait blocks until a slot is free or ctx is done
	Wait(ctx context.Context) error
	// Reset restores full capacity
	Reset()
}

// Bucket is a token bucket backed by rate.Limiter
type Bucket struct {
	limit   rate.Limit
	burst   int
	limiter atomic.Pointer[rate.Limiter]
}

// New creates a bucket refilling at limit tokens per second, holding at
// most burst. A burst below one is raised to one.
func New(limit rate.Limit, burst int) *Bucket {
	if burst < 1 {
		burst = 1
	}
	b := &Bucket{limit: limit, burst: burst}
	b.limiter.Store(rate.NewLimiter(limit, burst))
	return b
}

// Every creates a bucket that adds one token per interval
func Every(interval time.Duration, burst int) *Bucket {
	return New(rate.Every(interval), burst)
}

// PerMinute creates a bucket sustaining perMinute actions with the given
// burst. The burst never exceeds perMinute.
func PerMinute(perMinute, burst int) *Bucket {
	if perMinute <= 0 {
		perMinute = 1
	}
	if burst > perMinute {
		burst = perMinute
	}
	return Every(time.Minute/time.Duration(perMinute), burst)
}

// Allow takes a token if one is available now
func (b *Bucket) Allow() bool {
	return b.limiter.Load().Allow()
}

// Wait blocks until a token is available. A deadline too close to ever be
// met fails at once rather than sleeping until it passes.
func (b *Bucket) Wait(ctx context.Context) error {
	if err := b.limiter.Load().Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Reset refills the bucket to its burst
func (b *Bucket) Reset() {
	b.limiter.Store(rate.NewLimiter(b.limit, b.burst))
}

// Remaining reports the whole tokens available now
func (b *Bucket) Remaining() int {
	return int(b.limiter.Load().Tokens())
}

// Limit is the sustained rate in tokens per second
func (b *Bucket) Limit() rate.Limit {
	return b.limit
}

// Burst is the bucket's capacity
func (b *Bucket) Burst() int {
	return b.burst
}

// Unlimited never blocks
type Unlimited struct{}

func (Unlimited) Allow() bool                    { return true }
func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
func (Unlimited) Reset()                         {}
