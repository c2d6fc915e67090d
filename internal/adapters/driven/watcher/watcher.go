// Package watcher reports changes to an archive file using fsnotify.
//
// The parent directory is watched rather than the file itself, so an archive
// that is replaced by rename or deleted and re-created keeps being tracked.
// Bursts of events are collapsed into one notification after a quiet period.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
	"github.com/custodia-labs/chromasync/internal/logger"
)

// Ensure Watcher implements the interface.
var _ driven.FileWatcher = (*Watcher)(nil)

// DefaultDebounce is the quiet period before a change is reported.
const DefaultDebounce = 2 * time.Second

// Watcher implements driven.FileWatcher using fsnotify.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration

	closeOnce sync.Once
}

// New creates a watcher. A non-positive debounce uses DefaultDebounce.
func New(debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{fsw: fsw, debounce: debounce}, nil
}

// Watch emits path once per burst of writes, creates or renames that touch
// it. For a directory archive, changes to its direct entries count too.
func (w *Watcher) Watch(ctx context.Context, path string) (<-chan string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(abs)
	if err := w.fsw.Add(dir); err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	// A directory archive also reports changes to its own entries.
	_ = w.fsw.Add(abs)

	out := make(chan string, 1)
	go w.loop(ctx, abs, out)
	return out, nil
}

func (w *Watcher) loop(ctx context.Context, target string, out chan<- string) {
	defer close(out)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !relevant(event, target) {
				continue
			}
			logger.Debug("watch: %s %s", event.Op, event.Name)
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("watch: %v", err)

		case <-timer.C:
			select {
			case out <- target:
			default:
				// A notification is already pending.
			}
		}
	}
}

// relevant reports whether event touches target or an entry directly inside it.
func relevant(event fsnotify.Event, target string) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) &&
		!event.Has(fsnotify.Remove) {
		return false
	}
	name := filepath.Clean(event.Name)
	return name == target || filepath.Dir(name) == target
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fsw.Close()
	})
	return err
}
