package routes

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Reload reads file and registers every route it contains into t.
// It returns the number of routes registered.
func Reload(t *Table, file string, handlers HandlerSet) (int, error) {
	defs, err := LoadFile(file, handlers)
	if err != nil {
		return 0, err
	}
	for _, def := range defs {
		t.Register(def)
	}
	return len(defs), nil
}

// Watch re-registers the routes in file whenever it is written or recreated.
// Routes removed from the file stay registered; the table only grows or
// replaces. Watch blocks until ctx is done.
func Watch(ctx context.Context, t *Table, file string, handlers HandlerSet, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("routes: creating watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors often replace files instead of writing them.
	target := filepath.Clean(file)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("routes: watching %s: %w", file, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				n, err := Reload(t, target, handlers)
				if err != nil {
					logger.Warn("route file reload failed", zap.String("file", target), zap.Error(err))
					continue
				}
				logger.Info("route file reloaded", zap.String("file", target), zap.Int("routes", n))
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				logger.Warn("route file removed; keeping registered routes", zap.String("file", target))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("route watcher error", zap.Error(err))
		}
	}
}
