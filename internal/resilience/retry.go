package resilience

import (
	"context"

	"go.uber.org/zap"
)

// RetryConfig controls bounded, immediate retry. There is no backoff: a
// retry follows the failed attempt directly, after BeforeRetry has run.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts (including the first try).
	// A value of 1 means no retries. Default: 2.
	MaxAttempts int

	// ShouldRetry optionally overrides the default transient-error check.
	// If nil, IsTransient is used.
	ShouldRetry func(err error) bool

	// BeforeRetry runs before each retry with the upcoming attempt number
	// (starting at 2). A non-nil return stops retrying and is returned as-is.
	BeforeRetry func(ctx context.Context, attempt int, lastErr error) error

	// OnRetry is called before each retry with attempt number and error.
	OnRetry func(attempt int, err error)
}

// OnceImmediately returns a config that retries a failed call exactly once,
// whatever the error.
func OnceImmediately() RetryConfig {
	return RetryConfig{
		MaxAttempts: 2,
		ShouldRetry: func(error) bool { return true },
	}
}

// DoVal executes fn with retry logic according to cfg and returns the value
// from the successful call. Context cancellation stops retries immediately.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !shouldRetry(err) || attempt == cfg.MaxAttempts {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}
		if cfg.BeforeRetry != nil {
			if hookErr := cfg.BeforeRetry(ctx, attempt+1, err); hookErr != nil {
				return zero, hookErr
			}
		}
	}

	return zero, lastErr
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(component, operation string, fields ...zap.Field) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			append([]zap.Field{
				zap.String("component", component),
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Error(err),
			}, fields...)...,
		)
	}
}
