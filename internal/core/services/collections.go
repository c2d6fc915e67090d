package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
	"github.com/custodia-labs/chromasync/internal/core/ports/driving"
	"github.com/custodia-labs/chromasync/internal/logger"
)

// Ensure CollectionService implements the interface.
var _ driving.CollectionService = (*CollectionService)(nil)

// CollectionService manages remote collections and inspects local ones.
type CollectionService struct {
	openRemote driven.VectorStoreFactory
	openLocal  driven.LocalStoreOpener
}

// NewCollectionService creates a collection service.
func NewCollectionService(openRemote driven.VectorStoreFactory, openLocal driven.LocalStoreOpener) *CollectionService {
	return &CollectionService{openRemote: openRemote, openLocal: openLocal}
}

// List returns every remote collection.
func (s *CollectionService) List(ctx context.Context, remote domain.RemoteSettings) ([]domain.CollectionInfo, error) {
	store, err := s.openRemote(remote)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return store.ListCollections(ctx)
}

// Delete drops one remote collection.
func (s *CollectionService) Delete(ctx context.Context, remote domain.RemoteSettings, name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name is required", domain.ErrInvalidInput)
	}
	store, err := s.openRemote(remote)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteCollection(ctx, name); err != nil {
		return err
	}
	logger.Info("Deleted remote collection %s", name)
	return nil
}

// DeleteAll drops every remote collection and returns the names removed.
// On error the names deleted so far are still returned.
func (s *CollectionService) DeleteAll(ctx context.Context, remote domain.RemoteSettings) ([]string, error) {
	store, err := s.openRemote(remote)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	collections, err := store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	deleted := make([]string, 0, len(collections))
	for _, c := range collections {
		if err := store.DeleteCollection(ctx, c.Name); err != nil && !domain.IsNotFound(err) {
			return deleted, err
		}
		logger.Info("Deleted remote collection %s", c.Name)
		deleted = append(deleted, c.Name)
	}
	return deleted, nil
}

// LocalInfo reports the record count and manifest of a local collection.
// It fails with domain.ErrNotFound when no run has written the collection.
func (s *CollectionService) LocalInfo(ctx context.Context, dir, name string) (*driving.LocalCollectionInfo, error) {
	local, err := s.openLocal(dir, name)
	if err != nil {
		return nil, err
	}
	defer local.Close()

	manifest, err := local.ReadManifest(ctx, name)
	if err != nil {
		return nil, err
	}
	ids, err := local.LoadExistingIDs(ctx, name)
	if err != nil {
		return nil, err
	}
	if manifest == nil && len(ids) == 0 {
		return nil, fmt.Errorf("local collection %s: %w", name, domain.ErrNotFound)
	}

	return &driving.LocalCollectionInfo{
		Name:     name,
		Records:  len(ids),
		Manifest: manifest,
	}, nil
}
