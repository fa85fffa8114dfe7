// Package retry provides a bounded retry executor with exponential backoff,
// shared by provider fetches and persistence calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RateLimitError signals that the remote side asked for a specific delay
// before the next attempt. The executor honors RetryAfter when it exceeds
// the exponential schedule.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// PermanentError marks an error that must not be retried, such as rejected
// credentials.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so the executor fails immediately instead of retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Config holds retry behavior settings.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Executor runs operations with bounded retries. It holds no mutable state
// and is safe to share across concurrent call sites.
type Executor struct {
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
	sleep          func(ctx context.Context, d time.Duration) error
}

// New creates an executor. Zero config fields fall back to 3 attempts,
// 1s initial backoff and 30s max backoff.
func New(cfg Config, logger *slog.Logger) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &Executor{
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger,
		sleep:          sleepContext,
	}
}

// Do runs op up to MaxAttempts times. Between attempts it sleeps for
// InitialBackoff doubled per attempt, capped at MaxBackoff; a RateLimitError
// with a longer advised delay overrides that schedule. A PermanentError
// aborts immediately. The last error is propagated wrapped, inspectable via
// errors.Is/As.
func (e *Executor) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		var perm *PermanentError
		if errors.As(err, &perm) {
			return err
		}

		lastErr = err
		if attempt == e.maxAttempts {
			break
		}

		delay := e.backoff(attempt)
		var rl *RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > delay {
			delay = rl.RetryAfter
		}

		e.logger.Warn("operation failed, retrying",
			"attempt", attempt,
			"backoff", delay,
			"error", err,
		)

		if err := e.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("after %d attempts: %w", e.maxAttempts, lastErr)
}

func (e *Executor) backoff(attempt int) time.Duration {
	backoff := e.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > e.maxBackoff {
		backoff = e.maxBackoff
	}
	return backoff
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
