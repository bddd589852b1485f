package commands

import (
	"context"
	"log/slog"
	"time"
)

// RunRotationScheduler calls CheckRotationDue every interval until ctx is done. Due
// keys are queued as outbox events by the key manager, so the scheduler itself only
// logs. A failed check is logged and retried on the next tick.
func RunRotationScheduler(
	ctx context.Context,
	checker RotationChecker,
	interval time.Duration,
	logger *slog.Logger,
) error {
	logger.Info("starting key rotation scheduler", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping key rotation scheduler")
			return nil
		case <-ticker.C:
			notices, err := checker.CheckRotationDue(ctx)
			if err != nil {
				logger.Error("key rotation check failed", slog.Any("error", err))
				continue
			}
			if len(notices) > 0 {
				logger.Info("keys due for rotation", slog.Int("count", len(notices)))
			}
		}
	}
}
