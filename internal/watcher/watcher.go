// Package watcher keeps the catalog in sync with the content tree by
// re-running the indexer whenever archives change on disk.
package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches a titles tree for archive changes.
type Watcher struct {
	root     string
	onChange func()
	debounce time.Duration
	log      *zap.Logger
}

// New creates a tree watcher. onChange fires, debounced, after any .lha
// file is written, created, renamed, or removed under root.
func New(root string, onChange func(), log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		root:     root,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
		log:      log,
	}
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Watch blocks until the context is cancelled or an error occurs.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// fsnotify watches are not recursive: add every directory and pick
	// up new ones as they appear
	if err := addTree(watcher, w.root); err != nil {
		return err
	}
	w.log.Info("watching content tree", zap.String("root", w.root))

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Op&fsnotify.Create != 0 {
				// a new directory needs its own watch before events
				// inside it can arrive
				if err := addTree(watcher, event.Name); err != nil {
					w.log.Warn("watch add failed", zap.String("path", event.Name), zap.Error(err))
				}
			}

			if !strings.HasSuffix(event.Name, ".lha") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}

			w.log.Info("archive changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.onChange)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", zap.Error(err))

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// addTree registers path and every directory below it. Non-directories
// are ignored so it can be fed raw create events.
func addTree(watcher *fsnotify.Watcher, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == path {
				return nil // vanished between event and walk
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return watcher.Add(p)
	})
}
