// internal/common/database/retry.go
package database

import (
	"context"
	"fmt"
	"time"

	"dealflow-workers/internal/common/logger"
)

// RetryWithBackoff runs op up to maxAttempts times, doubling the delay after
// each failure. It stops early when ctx is done.
func RetryWithBackoff(ctx context.Context, op func(context.Context) error, maxAttempts int, initialDelay time.Duration, log logger.Logger, name string) error {
	var err error
	delay := initialDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}

		log.Warn(name+" failed, retrying", map[string]interface{}{
			"error":       err.Error(),
			"attempt":     attempt,
			"maxAttempts": maxAttempts,
			"nextRetryIn": delay.String(),
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s cancelled after %d attempts: %w", name, attempt, ctx.Err())
		}
		delay *= 2
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, maxAttempts, err)
}
