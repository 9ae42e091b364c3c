package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pinrunner/pkg/config"
	errs "pinrunner/pkg/errors"
	"pinrunner/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func() error

// OperationWithResult is a function that returns a result and might need retrying
type OperationWithResult[T any] func() (T, error)

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts (0 means unlimited)
	MaxAttempts int
	Backoff     BackoffStrategy
	// KindBackoff, when set, overrides Backoff per failure kind
	KindBackoff *KindBackoff
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		Logger:      logger.NewNopLogger(),
	}
}

// FromConfig builds a retry configuration from the application config
func FromConfig(cfg config.RetryConfig, log logger.Logger) *Config {
	if log == nil {
		log = logger.NewNopLogger()
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return &Config{
		MaxAttempts: attempts,
		Backoff: &ExponentialBackoff{
			BaseDelay:    cfg.BaseDelay,
			MaxDelay:     cfg.MaxDelay,
			Multiplier:   cfg.Multiplier,
			JitterFactor: 0.2,
		},
		RetryIf: DefaultRetryIf,
		Logger:  log,
	}
}

// DefaultRetryIf retries only the kinds errors.IsRetryable accepts
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if e, ok := errs.As(err); ok {
		return errs.IsRetryable(e.Kind)
	}
	return true
}

// Do executes an operation with retry logic
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if cfg.MaxAttempts > 0 && attempt > cfg.MaxAttempts {
			log.ErrorWithFields("max retry attempts exceeded", map[string]interface{}{
				"attempts":   attempt - 1,
				"last_error": lastErr.Error(),
			})
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
		}

		err := op()
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if !retryIf(err) {
			log.DebugWithFields("error is not retryable", map[string]interface{}{
				"error": err.Error(),
				"kind":  string(errs.KindOf(err)),
			})
			return err
		}
		if cfg.MaxAttempts > 0 && attempt == cfg.MaxAttempts {
			continue
		}

		backoff := cfg.Backoff
		if cfg.KindBackoff != nil {
			backoff = cfg.KindBackoff.For(err)
		}
		if backoff == nil {
			backoff = DefaultExponentialBackoff()
		}
		delay := backoff.NextDelay(attempt)

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		log.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"error":        err.Error(),
			"delay_ms":     delay.Milliseconds(),
			"max_attempts": cfg.MaxAttempts,
		})

		if err := Wait(ctx, delay); err != nil {
			log.WarnWithFields("retry cancelled", map[string]interface{}{
				"attempt": attempt,
				"reason":  err.Error(),
			})
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op OperationWithResult[T], cfg *Config) (T, error) {
	var result T

	err := Do(ctx, func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, cfg)

	return result, err
}
