package resilience

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"

	"go.uber.org/zap"
)

// recoverable is implemented by errors that may succeed on retry.
type recoverable interface {
	Recoverable() bool
}

// IsRecoverable classifies an error as retryable. Timeouts, network failures,
// and errors that declare themselves recoverable (5xx, 429, quota rollover)
// qualify; everything else fails fast.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var r recoverable
	if errors.As(err, &r) {
		return r.Recoverable()
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return false
}

// Retry executes fn with exponential backoff and jitter, retrying only
// recoverable errors up to maxRetries additional attempts.
func Retry(ctx context.Context, logger *zap.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func(ctx context.Context) error) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !IsRecoverable(lastErr) {
			return lastErr
		}

		if attempt == maxRetries {
			break
		}

		delay := baseDelay << uint(attempt)
		if delay <= 0 {
			// Zero-value configs still back off a little instead of feeding
			// Int63n an invalid argument.
			delay = time.Millisecond
		}
		// Full jitter keeps concurrent retries from synchronizing.
		delay = time.Duration(rand.Int63n(int64(delay)) + int64(delay)/2)

		logger.Debug("retrying operation",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(lastErr))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}
