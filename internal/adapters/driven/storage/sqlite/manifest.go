package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/chromasync/internal/core/domain"
)

const manifestFile = "manifest.toml"

func (s *Store) manifestPath() string {
	return filepath.Join(s.dir, manifestFile)
}

// ReadManifest returns the collection manifest, or nil when none exists.
// The store holds a single collection, so the name is only checked.
func (s *Store) ReadManifest(_ context.Context, collection string) (*domain.Manifest, error) {
	data, err := os.ReadFile(s.manifestPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("reading manifest", err)
	}

	var m domain.Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, storageErr("decoding manifest", err)
	}
	if m.Collection != "" && m.Collection != collection {
		return nil, nil
	}
	return &m, nil
}

// WriteManifest persists the manifest through a temp file and rename.
func (s *Store) WriteManifest(_ context.Context, manifest *domain.Manifest) error {
	if manifest == nil {
		return storageErr("writing manifest", domain.ErrInvalidInput)
	}

	data, err := toml.Marshal(manifest)
	if err != nil {
		return storageErr("encoding manifest", err)
	}

	tmp := s.manifestPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return storageErr("writing manifest", err)
	}
	if err := os.Rename(tmp, s.manifestPath()); err != nil {
		_ = os.Remove(tmp)
		return storageErr("replacing manifest", err)
	}
	return nil
}
