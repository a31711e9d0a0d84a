package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/veridag/veridag/pkg/engine"
)

const reloadDelay = 250 * time.Millisecond

// ReloadFunc receives the freshly parsed statement document after the
// watched file changes.
type ReloadFunc func(name string, statements []engine.Statement) error

// Watcher watches a statement file and re-delivers its parsed contents
// whenever the file changes on disk.
type Watcher struct {
	logger  zerolog.Logger
	loader  *Loader
	path    string
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher for the given statement file.
func NewWatcher(logger zerolog.Logger, loader *Loader, path string) *Watcher {
	return &Watcher{
		logger: logger.With().Str("component", "config-watcher").Logger(),
		loader: loader,
		path:   path,
	}
}

// Watch blocks until ctx is cancelled, invoking reloadFn after every change
// to the watched file. Parse failures are logged and skipped so a half-saved
// file does not stop the watch loop.
func (w *Watcher) Watch(ctx context.Context, reloadFn ReloadFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	w.watcher = watcher

	// Watch the containing directory: editors that write via rename would
	// otherwise drop the watch on the file itself.
	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.logger.Info().Str("path", w.path).Msg("Watching statement file")

	var reloadTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			_ = watcher.Close()
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Statement file changed")

			// Debounce: editors often emit several events per save.
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(reloadDelay, func() {
				if err := w.reload(reloadFn); err != nil {
					w.logger.Error().Err(err).Msg("Failed to reload statements")
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) reload(reloadFn ReloadFunc) error {
	name, statements, err := w.loader.Load(w.path)
	if err != nil {
		return err
	}

	w.logger.Info().
		Str("name", name).
		Int("statements", len(statements)).
		Msg("Statements reloaded")

	return reloadFn(name, statements)
}
