package driving

import (
	"context"

	"github.com/custodia-labs/chromasync/internal/core/domain"
)

// CollectionService administers remote and local collections.
type CollectionService interface {
	// List returns the remote collections.
	List(ctx context.Context, remote domain.RemoteSettings) ([]domain.CollectionInfo, error)

	// Delete drops one remote collection.
	Delete(ctx context.Context, remote domain.RemoteSettings, name string) error

	// DeleteAll drops every remote collection and returns their names.
	DeleteAll(ctx context.Context, remote domain.RemoteSettings) ([]string, error)

	// LocalInfo describes the local collection stored under dir.
	LocalInfo(ctx context.Context, dir, name string) (*LocalCollectionInfo, error)
}

// LocalCollectionInfo describes a local collection.
type LocalCollectionInfo struct {
	Name     string
	Records  int
	Manifest *domain.Manifest
}
