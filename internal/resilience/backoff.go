// Package resilience provides the Backoff Driver: a retry wrapper with a
// linearly growing, bounded delay used to wrap calls to the remote API.
// Every attempt is logged and waits are context-aware; growth is linear
// rather than exponential, and retries never stop on their own, because a
// failing sync must never be abandoned, only slowed.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/canaryhq/canary-agent/internal/metrics"
)

// Retryable is implemented by errors that should trigger another attempt.
// Errors that do not implement it (or implement it returning false) are
// programmer errors and propagate immediately.
type Retryable interface {
	Retryable() bool
}

// DefaultMaxWait is used when Backoff.MaxWait is zero.
const DefaultMaxWait = 300 * time.Second

// step is the fixed amount the wait grows by after each failed attempt.
const step = 10 * time.Second

// nextWait grows current by one step when the result still fits under
// maxWait, otherwise leaves it unchanged. Successive calls are therefore
// non-decreasing and never exceed maxWait, matching canaryd's reference
// backoff() which only increments interval while interval+10 <= max_wait.
func nextWait(current, maxWait time.Duration) time.Duration {
	if current+step <= maxWait {
		return current + step
	}
	return current
}

// Backoff wraps a single fallible operation with growing, bounded retry.
type Backoff struct {
	// MaxWait caps the inter-attempt delay. Typically set to
	// collect_interval_s so a failing sync can never delay the next
	// collection tick by more than one interval.
	MaxWait time.Duration

	Logger  *slog.Logger
	Metrics *metrics.BackoffMetrics
}

// Retry runs operation until it returns a nil error or a non-Retryable
// error, retrying forever on Retryable errors with a linearly growing
// delay capped at MaxWait. Context cancellation aborts the wait (and
// therefore the retry loop) immediately, returning ctx.Err().
func (b *Backoff) Retry(ctx context.Context, operation func() error) error {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxWait := b.MaxWait
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	var wait time.Duration

	for {
		err := operation()
		if err == nil {
			return nil
		}

		var r Retryable
		if !errors.As(err, &r) || !r.Retryable() {
			return err
		}

		wait = nextWait(wait, maxWait)

		logger.Error("operation failed, retrying",
			"error", err,
			"wait", wait,
			"severity", "critical",
		)

		if b.Metrics != nil {
			b.Metrics.RecordWait(wait.Seconds())
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RetryValue is like Retry but for operations producing a result.
func RetryValue[T any](ctx context.Context, b *Backoff, operation func() (T, error)) (T, error) {
	var result T
	err := b.Retry(ctx, func() error {
		var opErr error
		result, opErr = operation()
		return opErr
	})
	return result, err
}
