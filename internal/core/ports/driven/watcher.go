package driven

import "context"

// FileWatcher reports writes to a single path.
type FileWatcher interface {
	// Watch emits the path each time it is written, created or renamed into
	// place. The channel closes when ctx is cancelled.
	Watch(ctx context.Context, path string) (<-chan string, error)

	// Close releases resources.
	Close() error
}

// FileWatcherFactory creates a watcher for one watch session.
type FileWatcherFactory func() (FileWatcher, error)
