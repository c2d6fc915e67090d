package driven

import (
	"context"

	"github.com/custodia-labs/chromasync/internal/core/domain"
)

// VectorStore is the remote, queryable vector database.
// Failures are *domain.RemoteError.
type VectorStore interface {
	// Heartbeat checks the server is reachable.
	Heartbeat(ctx context.Context) error

	// ListCollections returns every collection in the target database.
	ListCollections(ctx context.Context) ([]domain.CollectionInfo, error)

	// CreateCollection gets or creates a collection tagged with metadata.
	CreateCollection(ctx context.Context, name string, dimensions int, metadata map[string]any) (*domain.CollectionInfo, error)

	// DescribeCollection returns a collection, or domain.ErrNotFound.
	DescribeCollection(ctx context.Context, name string) (*domain.CollectionInfo, error)

	// DeleteCollection drops a collection. Deleting a missing collection is
	// domain.ErrNotFound.
	DeleteCollection(ctx context.Context, name string) error

	// GetIDsAndHashes returns every id with its content hash and model.
	// A missing collection yields an empty map.
	GetIDsAndHashes(ctx context.Context, name string) (map[string]domain.RemoteEntry, error)

	// Upsert writes records by id.
	Upsert(ctx context.Context, name string, records []domain.ChunkRecord) error

	// Delete removes records by id.
	Delete(ctx context.Context, name string, ids []string) error

	// Close releases resources.
	Close() error
}

// VectorStoreFactory connects to a remote vector store.
type VectorStoreFactory func(settings domain.RemoteSettings) (VectorStore, error)
