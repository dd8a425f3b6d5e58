package startup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// RetryConfig configures the fixed-delay retry behavior.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	Clock       clockwork.Clock // nil means the real clock
}

// DefaultRetryConfig returns the budget used while waiting for aria2c to
// open its RPC port.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 10,
		Delay:       time.Second,
	}
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retry calls fn until it succeeds, returns a Permanent error, or
// MaxAttempts is used up. It sleeps Delay after every failed attempt.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func(ctx context.Context) error, logger *zerolog.Logger) error {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info().Str("operation", name).Int("attempt", attempt).Msg("operation succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if IsPermanent(err) {
			logger.Error().Err(err).Str("operation", name).Msg("permanent error, not retrying")
			return err
		}

		logger.Debug().
			Err(err).
			Str("operation", name).
			Int("attempt", attempt).
			Int("maxAttempts", cfg.MaxAttempts).
			Dur("nextRetryIn", cfg.Delay).
			Msg("attempt failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(cfg.Delay):
		}
	}

	logger.Error().Err(lastErr).Str("operation", name).Int("attempts", cfg.MaxAttempts).
		Msg("operation failed after all retries")
	return &ExhaustedError{Operation: name, Attempts: cfg.MaxAttempts, Err: lastErr}
}
