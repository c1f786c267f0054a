package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// StartSweeper schedules periodic removal of idle sessions on stores
// that support it. schedule is a cron expression (robfig/cron v3,
// "@every 10m" style descriptors included). The returned stop function
// is nil-safe to call once.
func StartSweeper(store Store, schedule string, olderThan time.Duration, logger *slog.Logger) (func(), error) {
	target, ok := store.(Sweeper)
	if !ok {
		return func() {}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		removed, err := target.Sweep(ctx, olderThan)
		if err != nil {
			logger.Error("session sweep failed", "error", err)
			return
		}
		if removed > 0 {
			logger.Info("swept idle sessions", "removed", removed, "older_than", olderThan)
		}
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	return func() { c.Stop() }, nil
}
