package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce absorbs editor write bursts (truncate+write, atomic rename).
const reloadDebounce = 250 * time.Millisecond

// Watcher reloads the config file when it changes and hands the parsed
// result to a callback. Used by serve mode so operators can rotate API keys
// or change log levels without a restart.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onReload func(*Config)
	logger   *slog.Logger
}

// NewWatcher creates a watcher for the config file at path.
// onReload is invoked with each successfully loaded config; load failures
// are logged and the previous config stays in effect.
func NewWatcher(path string, onReload func(*Config), logger *slog.Logger) (*Watcher, error) {
	if path == "" {
		path = DefaultFileName
	}
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: editors replace files by rename,
	// which drops a watch on the file itself.
	if err := fw.Add(filepath.Dir(filepath.Clean(path))); err != nil {
		_ = fw.Close()
		return nil, err
	}

	return &Watcher{
		path:     filepath.Clean(path),
		watcher:  fw,
		onReload: onReload,
		logger:   logger,
	}, nil
}

// Run blocks processing events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			cfg, err := Load(w.path)
			if err != nil {
				w.logger.Warn("config reload failed, keeping previous config",
					slog.String("path", w.path),
					slog.String("error", err.Error()))
				continue
			}
			w.logger.Info("config reloaded", slog.String("path", w.path))
			w.onReload(cfg)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}

// Close releases the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
