package outbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chatbridge/internal/logging"
	"chatbridge/internal/queue"
	"chatbridge/internal/transport"
)

// DefaultSendMaxRetries bounds transport attempts within one queue attempt.
const DefaultSendMaxRetries = 120

// RetryPolicy configures SendWithRetry.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy uses the queue's backoff formula and attempt budget.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultSendMaxRetries,
		BaseBackoff: queue.BaseBackoff,
		MaxBackoff:  queue.MaxBackoff,
	}
}

// SendFunc performs one transport call.
type SendFunc func(ctx context.Context) (transport.Result, error)

// ErrSendExhausted wraps the last error once every attempt has failed.
var ErrSendExhausted = errors.New("send attempts exhausted")

// SendWithRetry calls send until it succeeds, returns a non-retryable error,
// or MaxAttempts calls have failed. Sleeps between attempts end early when ctx
// is cancelled. It returns the number of attempts made.
func SendWithRetry(ctx context.Context, policy RetryPolicy, logger *slog.Logger, send SendFunc) (transport.Result, int, error) {
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultSendMaxRetries
	}
	sleep := policy.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err := send(ctx)
		if err == nil {
			return res, attempt, nil
		}
		lastErr = err
		if !transport.IsRetryable(err) {
			return transport.Result{}, attempt, err
		}
		if attempt == maxAttempts {
			break
		}

		delay := queue.ComputeBackoff(attempt, policy.BaseBackoff, policy.MaxBackoff)
		logger.Debug("transport send failed; backing off",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldEventType, "transport_retry"),
		)
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return transport.Result{}, attempt, fmt.Errorf("send interrupted after %d attempts: %w", attempt, errors.Join(sleepErr, lastErr))
		}
	}
	return transport.Result{}, maxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrSendExhausted, maxAttempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
