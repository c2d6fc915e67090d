package driving

import (
	"context"

	"github.com/custodia-labs/chromasync/internal/core/domain"
)

// RunFunc receives the outcome of every run started by a WatchService.
type RunFunc func(report *domain.RunReport, err error)

// WatchService re-indexes an archive whenever it changes.
type WatchService interface {
	// Run indexes archivePath once and then after every change until ctx
	// is cancelled. It returns early only on configuration errors.
	Run(ctx context.Context, archivePath string, settings domain.RunSettings,
		observer domain.ProgressObserver, onRun RunFunc) error
}
