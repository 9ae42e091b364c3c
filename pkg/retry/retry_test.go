package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinrunner/pkg/config"
	errs "pinrunner/pkg/errors"
	"pinrunner/pkg/logger"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{9, 1 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	seen := map[time.Duration]bool{}
	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, d, 140*time.Millisecond)
		assert.LessOrEqual(t, d, 260*time.Millisecond)
		seen[d] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestLinearBackoff(t *testing.T) {
	lb := &LinearBackoff{BaseDelay: time.Second, MaxDelay: 3 * time.Second, Increment: time.Second}
	assert.Equal(t, time.Second, lb.NextDelay(1))
	assert.Equal(t, 2*time.Second, lb.NextDelay(2))
	assert.Equal(t, 3*time.Second, lb.NextDelay(7))
}

func TestKindBackoff(t *testing.T) {
	kb := NewKindBackoff()
	assert.Same(t, kb.RateLimit, kb.For(errs.New(errs.KindRateLimit, "429")))
	assert.Same(t, kb.Network, kb.For(errs.New(errs.KindNetwork, "reset")))
	assert.Same(t, kb.Page, kb.For(errs.New(errs.KindElementNotFound, "button")))
	assert.Same(t, kb.Default, kb.For(errors.New("plain")))
}

func fastConfig(attempts int) *Config {
	return &Config{
		MaxAttempts: attempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(error) bool { return true },
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, fastConfig(5))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	root := errs.New(errs.KindElementNotFound, "submit button")
	err := Do(context.Background(), func() error {
		attempts++
		return root
	}, fastConfig(3))

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")
	assert.True(t, errs.Is(err, errs.KindElementNotFound))
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	tl := logger.NewTestLogger()
	attempts := 0
	cfg := DefaultConfig()
	cfg.Backoff = &ConstantBackoff{Delay: time.Millisecond}
	cfg.Logger = tl

	err := Do(context.Background(), func() error {
		attempts++
		return errs.New(errs.KindUnconfirmedOutcome, "delete not confirmed")
	}, cfg)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, tl.HasMessage("error is not retryable"))
}

func TestDoContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Hour},
		RetryIf:     func(error) bool { return true },
		OnRetry:     func(int, error, time.Duration) { cancel() },
	}

	err := Do(ctx, func() error { return errors.New("fail") }, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	got, err := DoWithResult(context.Background(), func() (string, error) {
		attempts++
		if attempts == 1 {
			return "", errs.New(errs.KindNetwork, "reset")
		}
		return "ok", nil
	}, fastConfig(3))

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.True(t, DefaultRetryIf(errs.New(errs.KindServerError, "502")))
	assert.False(t, DefaultRetryIf(errs.New(errs.KindAuthExpired, "redirected")))
	assert.False(t, DefaultRetryIf(errs.New(errs.KindUnsupportedChallenge, "otp")))
	assert.True(t, DefaultRetryIf(errors.New("unclassified")))
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.RetryConfig{MaxAttempts: 0, BaseDelay: time.Second, MaxDelay: 4 * time.Second, Multiplier: 2}, nil)
	assert.Equal(t, 1, cfg.MaxAttempts)
	require.NotNil(t, cfg.Logger)

	eb, ok := cfg.Backoff.(*ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, 4*time.Second, eb.MaxDelay)
}
