package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
)

// Ensure LocalStore implements the interface.
var _ driven.LocalStore = (*LocalStore)(nil)

// LocalStore is an in-memory implementation of driven.LocalStore.
type LocalStore struct {
	mu        sync.RWMutex
	records   map[string]map[string]domain.ChunkRecord
	manifests map[string]domain.Manifest
	upserts   int
	failWrite error
	closed    bool
}

// NewLocalStore creates a new in-memory local store.
func NewLocalStore() *LocalStore {
	return &LocalStore{
		records:   make(map[string]map[string]domain.ChunkRecord),
		manifests: make(map[string]domain.Manifest),
	}
}

// Opener returns a driven.LocalStoreOpener that always hands out s.
// Close on the returned store is a no-op so s survives across runs.
func (s *LocalStore) Opener() driven.LocalStoreOpener {
	return func(_, _ string) (driven.LocalStore, error) {
		return nopCloser{s}, nil
	}
}

// FailWrites makes every subsequent write fail with err wrapped in
// domain.ErrStorage. A nil err clears the failure.
func (s *LocalStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrite = err
}

// UpsertCalls returns the number of Upsert calls that wrote records.
func (s *LocalStore) UpsertCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upserts
}

// Closed reports whether Close was called.
func (s *LocalStore) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Upsert stores records by id.
func (s *LocalStore) Upsert(_ context.Context, collection string, records []domain.ChunkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: record has no id", domain.ErrStorage)
		}
	}

	coll, ok := s.records[collection]
	if !ok {
		coll = make(map[string]domain.ChunkRecord)
		s.records[collection] = coll
	}
	for _, r := range records {
		r.Embedding = append([]float32(nil), r.Embedding...)
		coll[r.ID] = r
	}
	s.upserts++
	return nil
}

// LoadExistingIDs returns the ids of the collection.
func (s *LocalStore) LoadExistingIDs(_ context.Context, collection string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[string]struct{}, len(s.records[collection]))
	for id := range s.records[collection] {
		ids[id] = struct{}{}
	}
	return ids, nil
}

// LoadRecords returns the stored records for ids in id order.
func (s *LocalStore) LoadRecords(_ context.Context, collection string, ids []string) ([]domain.ChunkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ChunkRecord
	for _, id := range ids {
		if r, ok := s.records[collection][id]; ok {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AllRecords returns every record ordered by id.
func (s *LocalStore) AllRecords(_ context.Context, collection string) ([]domain.ChunkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ChunkRecord, 0, len(s.records[collection]))
	for _, r := range s.records[collection] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Entries returns id -> (content hash, model, source archive).
func (s *LocalStore) Entries(_ context.Context, collection string) (map[string]domain.LocalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.LocalEntry, len(s.records[collection]))
	for id, r := range s.records[collection] {
		out[id] = domain.LocalEntry{Hash: r.ContentHash, Model: r.Model, Archive: r.Metadata.Archive}
	}
	return out, nil
}

// Prune deletes records whose id is not in keep.
func (s *LocalStore) Prune(_ context.Context, collection string, keep map[string]struct{}) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(); err != nil {
		return 0, err
	}

	pruned := 0
	for id := range s.records[collection] {
		if _, ok := keep[id]; !ok {
			delete(s.records[collection], id)
			pruned++
		}
	}
	return pruned, nil
}

// DeleteCollection removes the records and manifest of collection.
func (s *LocalStore) DeleteCollection(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(); err != nil {
		return err
	}
	delete(s.records, collection)
	delete(s.manifests, collection)
	return nil
}

// ReadManifest returns a copy of the manifest, or nil.
func (s *LocalStore) ReadManifest(_ context.Context, collection string) (*domain.Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.manifests[collection]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// WriteManifest stores a copy of the manifest.
func (s *LocalStore) WriteManifest(_ context.Context, manifest *domain.Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(); err != nil {
		return err
	}
	if manifest == nil {
		return fmt.Errorf("%w: nil manifest", domain.ErrStorage)
	}
	s.manifests[manifest.Collection] = *manifest
	return nil
}

// Close marks the store closed. Data is kept.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// writeErr must be called with the lock held.
func (s *LocalStore) writeErr() error {
	if s.failWrite != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorage, s.failWrite)
	}
	return nil
}

type nopCloser struct {
	*LocalStore
}

func (nopCloser) Close() error { return nil }
