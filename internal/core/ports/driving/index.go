package driving

import (
	"context"

	"github.com/custodia-labs/chromasync/internal/core/domain"
)

// IndexService runs the archive-to-collection pipeline.
type IndexService interface {
	// Index extracts, chunks, embeds and stores an archive, then syncs the
	// remote collection unless settings.NoSync is set. A returned report
	// with a non-OK sync summary comes with an error wrapping
	// domain.ErrSyncIncomplete or domain.ErrSyncAborted.
	Index(ctx context.Context, archivePath string, settings domain.RunSettings,
		observer domain.ProgressObserver) (*domain.RunReport, error)

	// Plan runs the pipeline up to DIFF and reports the plan without
	// mutating the remote collection.
	Plan(ctx context.Context, archivePath string, settings domain.RunSettings,
		observer domain.ProgressObserver) (*domain.RunReport, error)
}
