package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "igreels/pkg/errors"
	"igreels/pkg/logger"
)

// Operation performs one attempt. attempt starts at 1.
type Operation func(attempt int) error

// OperationWithResult is an attempt that returns a result
type OperationWithResult[T any] func(attempt int) (T, error)

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int
	// Backoff strategy to use
	Backoff BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
	// Logger for retry attempts
	Logger logger.Logger
	// Name identifies the operation in log lines
	Name string
}

// ExhaustedError is returned when every attempt failed with a retryable error
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("max retry attempts (%d) exceeded: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		Logger:      logger.NewNopLogger(),
	}
}

// Navigation returns the policy used around page loads: only
// navigation timeouts are retried.
func Navigation(attempts int, base time.Duration, l logger.Logger) Config {
	return Config{
		MaxAttempts: attempts,
		Backoff: &ExponentialBackoff{
			BaseDelay:    base,
			MaxDelay:     base * 8,
			Multiplier:   2.0,
			JitterFactor: 0.2,
		},
		RetryIf: DefaultRetryIf,
		Logger:  l,
		Name:    "navigation",
	}
}

// DefaultRetryIf retries errors classified as retryable
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	// Check for context errors (don't retry)
	if errors.Is(err, context.Canceled) {
		return false
	}

	return errs.Retryable(err)
}

// Do executes an operation with retry logic. The attempt loop is bounded
// by cfg.MaxAttempts; a non-positive value means a single attempt.
func Do(ctx context.Context, op Operation, cfg Config) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Backoff == nil {
		cfg.Backoff = &ConstantBackoff{}
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = DefaultRetryIf
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("retry cancelled: %w", errors.Join(err, lastErr))
			}
			return err
		}

		err := op(attempt)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"operation": cfg.Name,
					"attempt":   attempt,
				})
			}
			return nil
		}
		lastErr = err

		if !cfg.RetryIf(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.Backoff.NextDelay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		log.WarnWithFields("retrying operation", map[string]interface{}{
			"operation":    cfg.Name,
			"attempt":      attempt,
			"error":        err.Error(),
			"delay_ms":     delay.Milliseconds(),
			"max_attempts": cfg.MaxAttempts,
		})

		if err := Wait(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", errors.Join(err, lastErr))
		}
	}

	log.ErrorWithFields("max retry attempts exceeded", map[string]interface{}{
		"operation":  cfg.Name,
		"attempts":   cfg.MaxAttempts,
		"last_error": lastErr.Error(),
	})
	return &ExhaustedError{Attempts: cfg.MaxAttempts, Last: lastErr}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op OperationWithResult[T], cfg Config) (T, error) {
	var result T

	err := Do(ctx, func(attempt int) error {
		var opErr error
		result, opErr = op(attempt)
		return opErr
	}, cfg)

	return result, err
}

// Exhausted reports whether err came from running out of attempts
func Exhausted(err error) bool {
	var e *ExhaustedError
	return errors.As(err, &e)
}
