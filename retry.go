package strata

import (
	"context"
	"errors"
	log "log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retry executes task with Fibonacci backoff up to 5 retries.
// If retries are exhausted, gaveUpTask is invoked (when not nil) and the final error is returned.
func Retry(ctx context.Context, task func(ctx context.Context) error, gaveUpTask func(ctx context.Context)) error {
	b := retry.NewFibonacci(1 * time.Second)
	if err := retry.Do(ctx, retry.WithMaxRetries(5, b), task); err != nil {
		log.Warn(err.Error() + ", gave up")
		if gaveUpTask != nil {
			gaveUpTask(ctx)
		}
		return err
	}
	return nil
}

// ShouldRetry reports whether the error is retryable (non-nil and not a known permanent failure).
// Capacity exhaustion is permanent from the retrier's POV; the circuit breaker owns that path.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	// Context cancellations/timeouts are permanent from the caller's POV.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsCapacityExhausted(err) {
		return false
	}
	var e Error
	if errors.As(err, &e) && e.Code == InvalidRecord {
		return false
	}
	return true
}

// RetryableError marks err for retry consumption by the retry package, honoring ShouldRetry.
func RetryableError(err error) error {
	if !ShouldRetry(err) {
		return err
	}
	return retry.RetryableError(err)
}
