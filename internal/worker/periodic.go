package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Job is one run of a background task.
type Job func(ctx context.Context) error

// RunPeriodic runs job once per interval until ctx is cancelled. Failures are
// logged and the schedule continues. The ticker is always released.
func RunPeriodic(ctx context.Context, name string, interval time.Duration, job Job, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("background job started", zap.String("job", name), zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			logger.Info("background job stopped", zap.String("job", name))
			return
		case <-ticker.C:
			if err := job(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("background job failed", zap.String("job", name), zap.Error(err))
			}
		}
	}
}

// SweepSessions adapts a session sweep to a Job.
func SweepSessions(sweep func(context.Context) (int, error)) Job {
	return func(ctx context.Context) error {
		_, err := sweep(ctx)
		return err
	}
}
