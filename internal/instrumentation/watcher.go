package instrumentation

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reloads the configuration file when it changes and applies
// the runtime settings (log level, logging enabled) to a Provider.
//
// The parent directory is watched rather than the file itself so that
// editors which replace the file on save are handled.
type ConfigWatcher struct {
	path     string
	provider *Provider
	watcher  *fsnotify.Watcher
	onReload func(Config, error)
}

// NewConfigWatcher creates a watcher for the config file at path.
// onReload, if non-nil, is called after every reload attempt.
func NewConfigWatcher(path string, provider *Provider, onReload func(Config, error)) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &ConfigWatcher{
		path:     abs,
		provider: provider,
		watcher:  watcher,
		onReload: onReload,
	}, nil
}

// Start processes file events until ctx is cancelled or the watcher is
// stopped. Should be run in a goroutine.
func (w *ConfigWatcher) Start(ctx context.Context) {
	slog.Debug("Started watching config file", "path", w.path)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", "error", err)

		case <-ctx.Done():
			slog.Debug("Config watcher stopping")
			return
		}
	}
}

// handleEvent reloads the config on writes to, or creation of, the file.
func (w *ConfigWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	config, err := LoadConfig(w.path)
	if err == nil {
		err = config.Validate()
	}
	if err != nil {
		slog.Warn("Ignoring invalid config file change",
			"path", w.path,
			"error", err)
	} else {
		slog.Info("Config file changed, applying runtime settings",
			"path", w.path,
			"log_level", config.Logging.Level)
		w.provider.ApplyRuntimeConfig(config)
	}

	if w.onReload != nil {
		w.onReload(config, err)
	}
}

// Stop stops the watcher. Safe to call multiple times.
func (w *ConfigWatcher) Stop() error {
	return w.watcher.Close()
}
