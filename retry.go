package fdfs

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/fdfsgo/fdfs-client/internal/ferrors"
	"github.com/fdfsgo/fdfs-client/internal/logger"
)

// withRetry runs fn up to c.config.RetryCount+1 times, backing off
// exponentially between attempts, and gives up immediately on an error
// ferrors.Retryable classifies as terminal. It also records metrics and
// structured logs for each attempt and wraps the whole call in a trace span.
func (c *Client) withRetry(ctx context.Context, op, fileID string, fn func(ctx context.Context, attempt int) error) error {
	start := time.Now()
	ctx, span := c.startSpan(ctx, op, fileID)

	correlationID := uuid.NewString()
	ctx = logger.WithContext(ctx, logger.LogContext{CorrelationID: correlationID, Operation: op})

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.RetryBaseDelay
	bo.MaxInterval = c.config.RetryMaxDelay
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0 // attempt count governs the cap, not elapsed wall time
	bo.Reset()            // restart from InitialInterval now that it is configured

	var lastErr error
	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = ferrors.Wrap(ferrors.KindCancelled, err, "operation cancelled").WithFileID(fileID)
			break
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			c.metrics.observeOperation(op, start, nil)
			endSpan(span, nil)
			return nil
		}

		c.log.Warn(ctx, "operation attempt failed", "op", op, "attempt", attempt, "err", lastErr)

		if !ferrors.Retryable(lastErr) {
			break
		}
		if attempt == c.config.RetryCount {
			break
		}

		c.metrics.observeRetry(op)
		delay := bo.NextBackOff()
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			lastErr = ferrors.Wrap(ferrors.KindCancelled, ctx.Err(), "operation cancelled during backoff").WithFileID(fileID)
		case <-timer.C:
		}
	}

	c.metrics.observeOperation(op, start, lastErr)
	endSpan(span, lastErr)
	return lastErr
}
