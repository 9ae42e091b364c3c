package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	errs "pinrunner/pkg/errors"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay before the given attempt's retry
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements exponential backoff with jitter
type ExponentialBackoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Multiplier is the factor by which delay increases
	Multiplier float64
	// JitterFactor adds randomness (0.0 to 1.0)
	JitterFactor float64
}

// DefaultExponentialBackoff returns a backoff with sensible defaults
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay calculates the next delay with exponential backoff and jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	return applyJitter(delay, eb.JitterFactor)
}

// LinearBackoff implements linear backoff strategy
type LinearBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Increment    time.Duration
	JitterFactor float64
}

// NextDelay calculates the next delay with linear backoff
func (lb *LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(lb.BaseDelay + lb.Increment*time.Duration(attempt-1))
	if delay > float64(lb.MaxDelay) {
		delay = float64(lb.MaxDelay)
	}

	return applyJitter(delay, lb.JitterFactor)
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

func applyJitter(delay, factor float64) time.Duration {
	if factor > 0 {
		jitter := delay * factor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// KindBackoff picks a strategy by the failure kind of the last error
type KindBackoff struct {
	Network   BackoffStrategy
	RateLimit BackoffStrategy
	Server    BackoffStrategy
	// Page covers navigation and element timeouts in the browser
	Page    BackoffStrategy
	Default BackoffStrategy
}

// NewKindBackoff creates per-kind strategies; rate limits back off longest
func NewKindBackoff() *KindBackoff {
	return &KindBackoff{
		Network: &ExponentialBackoff{
			BaseDelay:    1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.2,
		},
		RateLimit: &ExponentialBackoff{
			BaseDelay:    30 * time.Second,
			MaxDelay:     5 * time.Minute,
			Multiplier:   1.5,
			JitterFactor: 0.3,
		},
		Server: &ExponentialBackoff{
			BaseDelay:    5 * time.Second,
			MaxDelay:     60 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		Page: &LinearBackoff{
			BaseDelay:    3 * time.Second,
			MaxDelay:     20 * time.Second,
			Increment:    3 * time.Second,
			JitterFactor: 0.25,
		},
		Default: DefaultExponentialBackoff(),
	}
}

// For returns the strategy for an error
func (kb *KindBackoff) For(err error) BackoffStrategy {
	switch errs.KindOf(err) {
	case errs.KindNetwork:
		return kb.Network
	case errs.KindRateLimit:
		return kb.RateLimit
	case errs.KindServerError:
		return kb.Server
	case errs.KindNavigation, errs.KindElementNotFound:
		return kb.Page
	default:
		return kb.Default
	}
}
