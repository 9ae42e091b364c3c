// Package timing produces the randomized delays and input cadences used for
// every wait in pinrunner. Fixed-interval automation is itself a detection
// signal, so nothing else in the module sleeps for a constant duration.
package timing

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"pinrunner/pkg/config"
)

// Typer receives text one rune at a time
type Typer interface {
	Type(ctx context.Context, text string) error
}

// Scroller advances the viewport vertically by dy pixels
type Scroller interface {
	Scroll(ctx context.Context, dy float64) error
}

// Model holds the configured bounds and a random source
type Model struct {
	cfg config.TimingConfig

	mu  sync.Mutex
	rng *rand.Rand
	// sleep is swapped out by tests that count waits instead of taking them
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Model
type Option func(*Model)

// WithSource makes the model deterministic
func WithSource(src rand.Source) Option {
	return func(m *Model) {
		m.rng = rand.New(src)
	}
}

// WithSleeper replaces the wait primitive
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Model) {
		m.sleep = sleep
	}
}

// New creates a timing model
func New(cfg config.TimingConfig, opts ...Option) *Model {
	m := &Model{
		cfg:   cfg,
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		sleep: Hesitate,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Instant returns a model whose waits return immediately; used by tests
func Instant(cfg config.TimingConfig) *Model {
	return New(cfg, WithSleeper(func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	}))
}

// Jitter samples a duration uniformly from [min, max]
func (m *Model) Jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return min + time.Duration(m.rng.Int64N(int64(max-min)+1))
}

func (m *Model) chance(p float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64() < p
}

func (m *Model) intBetween(min, max int) int {
	if max <= min {
		return min
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return min + m.rng.IntN(max-min+1)
}

// JitteredDelay suspends the caller for a uniform random duration in [min, max]
func (m *Model) JitteredDelay(ctx context.Context, min, max time.Duration) error {
	return m.sleep(ctx, m.Jitter(min, max))
}

// ActionPause is the standard wait before any click, fill or submit
func (m *Model) ActionPause(ctx context.Context) error {
	return m.JitteredDelay(ctx, m.cfg.ActionMin, m.cfg.ActionMax)
}

// TypeWithCadence delivers text rune by rune with independent random gaps
func (m *Model) TypeWithCadence(ctx context.Context, target Typer, text string) error {
	runes := []rune(text)
	for i, r := range runes {
		if err := target.Type(ctx, string(r)); err != nil {
			return err
		}
		if i == len(runes)-1 {
			break
		}
		gap := m.Jitter(m.cfg.KeyMin, m.cfg.KeyMax)
		if m.cfg.PauseChance > 0 && m.chance(m.cfg.PauseChance) {
			gap += m.Jitter(m.cfg.PauseMin, m.cfg.PauseMax)
		}
		if err := m.sleep(ctx, gap); err != nil {
			return err
		}
	}
	return nil
}

// OrganicScroll advances by distance pixels in bounded increments.
// Negative distances scroll up.
func (m *Model) OrganicScroll(ctx context.Context, target Scroller, distance float64) error {
	dir := 1.0
	remaining := distance
	if distance < 0 {
		dir = -1
		remaining = -distance
	}

	for remaining > 0 {
		step := float64(m.intBetween(m.cfg.ScrollStepMin, m.cfg.ScrollStepMax))
		if step <= 0 {
			step = remaining
		}
		if step > remaining {
			step = remaining
		}
		if err := target.Scroll(ctx, dir*step); err != nil {
			return err
		}
		remaining -= step
		if remaining > 0 {
			if err := m.sleep(ctx, m.Jitter(m.cfg.KeyMin, m.cfg.KeyMax)); err != nil {
				return err
			}
		}
	}
	return nil
}

// ScrollPass is the pause between lazy-load scroll passes
func (m *Model) ScrollPass(ctx context.Context) error {
	return m.JitteredDelay(ctx, m.cfg.ScrollPassMin, m.cfg.ScrollPassMax)
}

// Passes is the configured number of lazy-load scroll passes
func (m *Model) Passes() int {
	return m.cfg.ScrollPasses
}

// Hesitate pauses execution, respecting the context cancellation
func Hesitate(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
