package ui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchDir re-runs render whenever files under dir change. Bursts of events
// are debounced into one render, since a single status update arrives as a
// temp-file write plus a rename. The first render happens immediately and
// the watch ends with ctx.
func WatchDir(ctx context.Context, dir string, debounce time.Duration, render func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	render()

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("status watch error", slog.Any("error", err))
		case <-timer.C:
			render()
		}
	}
}
