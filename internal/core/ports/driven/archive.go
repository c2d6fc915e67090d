package driven

import (
	"context"

	"github.com/custodia-labs/chromasync/internal/core/domain"
)

// DocumentSource streams the supported entries of an archive.
type DocumentSource interface {
	// Name returns the archive base name without container extensions.
	Name() string

	// Path returns the archive location on disk.
	Path() string

	// Documents streams supported entries in archive order.
	// Each call starts a fresh pass. The error channel carries at most one
	// error and is closed after the document channel.
	Documents(ctx context.Context) (<-chan domain.RawDocument, <-chan error)

	// Stats returns the counters of the most recently completed pass.
	Stats() ExtractStats
}

// ExtractStats counts what a pass over an archive saw.
type ExtractStats struct {
	// Entries is the number of file entries visited.
	Entries int

	// Emitted is the number of documents sent downstream.
	Emitted int

	// Skipped counts hidden, unsupported and binary entries.
	Skipped int
}

// SourceOpener opens an archive, accepting extraExtensions on top of the
// built-in allow-list. Failures wrap domain.ErrArchive.
type SourceOpener func(path string, extraExtensions []string) (DocumentSource, error)
