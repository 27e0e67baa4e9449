package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that logs run start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, threadID string, next Handler) error {
		logger.Info("workflow started",
			slog.String("thread_id", threadID),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("workflow failed",
				slog.String("thread_id", threadID),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("workflow completed",
				slog.String("thread_id", threadID),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
