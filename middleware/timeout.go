package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Timeout returns middleware that enforces an execution deadline on every
// run. When d is zero or negative the middleware is a pass-through. When
// the deadline is exceeded the run context is cancelled and the producer
// should return context.DeadlineExceeded.
func Timeout(logger *slog.Logger, d time.Duration) Middleware {
	return func(ctx context.Context, threadID string, next Handler) error {
		if d > 0 {
			logger.Debug("workflow timeout set",
				slog.String("thread_id", threadID),
				slog.Duration("timeout", d),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
