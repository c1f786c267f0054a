package curriculum

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the provider from path whenever the course file
// changes on disk. It blocks until ctx is cancelled.
func Watch(ctx context.Context, provider *Provider, path string, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}
	logger.Info("watching course file", "path", path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			c, err := LoadFile(path)
			if err != nil {
				// Editors often write partial files; keep the old curriculum.
				logger.Warn("course reload failed", "path", path, "error", err)
				continue
			}
			provider.Replace(c)
			logger.Info("course reloaded", "course", c.Course, "topics", len(c.Topics))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("course watcher error", "error", err)
		}
	}
}
