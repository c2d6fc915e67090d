package services

import (
	"context"
	"errors"

	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
	"github.com/custodia-labs/chromasync/internal/core/ports/driving"
	"github.com/custodia-labs/chromasync/internal/logger"
)

// Ensure WatchService implements the interface.
var _ driving.WatchService = (*WatchService)(nil)

// WatchService re-indexes an archive every time it changes.
type WatchService struct {
	index      driving.IndexService
	newWatcher driven.FileWatcherFactory
}

// NewWatchService creates a watch service. Each Run gets its own watcher.
func NewWatchService(index driving.IndexService, newWatcher driven.FileWatcherFactory) *WatchService {
	return &WatchService{index: index, newWatcher: newWatcher}
}

// Run indexes archivePath once, then again after each change, until ctx is
// cancelled. Runs never overlap; changes seen during a run trigger one more.
// A failed run is reported to onRun and watching continues, except for
// configuration errors, which would fail every run the same way.
func (s *WatchService) Run(
	ctx context.Context,
	archivePath string,
	settings domain.RunSettings,
	observer domain.ProgressObserver,
	onRun driving.RunFunc,
) error {
	watcher, err := s.newWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	changes, err := watcher.Watch(ctx, archivePath)
	if err != nil {
		return err
	}

	run := func() error {
		report, err := s.index.Index(ctx, archivePath, settings, observer)
		if onRun != nil {
			onRun(report, err)
		}
		if errors.Is(err, domain.ErrConfiguration) {
			return err
		}
		return nil
	}

	if err := run(); err != nil {
		return err
	}
	logger.Info("Watching %s for changes", archivePath)

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			logger.Info("%s changed, re-indexing", archivePath)
			if err := run(); err != nil {
				return err
			}
		}
	}
}
