package driven

import (
	"context"

	"github.com/custodia-labs/chromasync/internal/core/domain"
)

// LocalStore is the durable, authoritative copy of every collection.
// All methods wrap I/O failures in domain.ErrStorage.
type LocalStore interface {
	// Upsert inserts or replaces records by id in one transaction.
	// Writing identical records again is a no-op.
	Upsert(ctx context.Context, collection string, records []domain.ChunkRecord) error

	// LoadExistingIDs returns the ids of the collection, empty when absent.
	LoadExistingIDs(ctx context.Context, collection string) (map[string]struct{}, error)

	// LoadRecords returns the stored records for ids, skipping unknown ids.
	LoadRecords(ctx context.Context, collection string, ids []string) ([]domain.ChunkRecord, error)

	// AllRecords returns every record of the collection ordered by id.
	AllRecords(ctx context.Context, collection string) ([]domain.ChunkRecord, error)

	// Entries returns id -> (content hash, model, source archive) for the collection.
	Entries(ctx context.Context, collection string) (map[string]domain.LocalEntry, error)

	// Prune deletes records whose id is not in keep and returns how many went.
	Prune(ctx context.Context, collection string, keep map[string]struct{}) (int, error)

	// DeleteCollection removes every record and the manifest.
	DeleteCollection(ctx context.Context, collection string) error

	// ReadManifest returns the manifest, or nil when none has been written.
	ReadManifest(ctx context.Context, collection string) (*domain.Manifest, error)

	// WriteManifest persists the manifest.
	WriteManifest(ctx context.Context, manifest *domain.Manifest) error

	// Close releases resources.
	Close() error
}

// LocalStoreOpener opens the local store for a collection under dir.
type LocalStoreOpener func(dir, collection string) (LocalStore, error)
