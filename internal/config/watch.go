package config

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch follows the config file at path and calls onReload with the freshly
// loaded Config each time a rewrite lands on disk. The fleet is built once at
// startup and never rewired, so a reload changes nothing by itself; callers
// use the callback to tell operators what a restart would pick up.
//
// A rewrite that fails to load (unreadable, bad YAML, failed validation) is
// logged and swallowed: the running fleet keeps its current config and
// onReload is not called. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, onReload func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("watching config file", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Editors that save atomically replace the inode, which silently
			// drops the watch. Re-arm it before loading so the rewrite after
			// this one is seen either way.
			_ = watcher.Add(path)

			cfg, err := Load(path)
			if err != nil {
				slog.Error("config rewrite is invalid, keeping the running config",
					"path", path, "err", err)
				continue
			}
			slog.Info("config rewritten on disk", "path", path)
			onReload(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config watcher", "err", err)
		}
	}
}
