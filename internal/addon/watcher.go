package addon

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 100 * time.Millisecond

// Reloader is what the watcher triggers.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Watcher reloads add-ons when files under the add-on paths change.
// Bursts of events are collapsed into one reload after a quiet period.
type Watcher struct {
	reloader Reloader
	paths    []string
	debounce time.Duration
	logger   *zap.Logger
}

// NewWatcher creates a watcher over paths.
func NewWatcher(reloader Reloader, paths []string, debounce time.Duration, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		reloader: reloader,
		paths:    paths,
		debounce: debounce,
		logger:   logger.With(zap.String("component", "addon-watcher")),
	}
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return &WatchError{Paths: w.paths, Err: err}
	}
	defer fw.Close()

	for _, p := range w.paths {
		w.watchTree(fw, p)
	}

	// Armed only after the first event.
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.watchTree(fw, event.Name)
				}
			}
			w.logger.Debug("Add-on file changed",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()),
			)
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Add-on watcher error", zap.Error(err))

		case <-timer.C:
			if err := w.reloader.Reload(ctx); err != nil {
				w.logger.Error("Add-on reload failed", zap.Error(err))
			}
		}
	}
}

// watchTree adds root and the add-on directories below it. Add-ons are one
// level deep, so deeper directories are ignored.
func (w *Watcher) watchTree(fw *fsnotify.Watcher, root string) {
	if err := fw.Add(root); err != nil {
		w.logger.Warn("Cannot watch add-on path", zap.String("path", root), zap.Error(err))
		return
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if err := fw.Add(dir); err != nil {
			w.logger.Warn("Cannot watch add-on directory", zap.String("path", dir), zap.Error(err))
		}
	}
}
