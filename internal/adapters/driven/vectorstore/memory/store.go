// Package memory provides an in-memory driven.VectorStore with fault
// injection, standing in for a remote server in tests and dry runs.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// ErrDisconnected is the cause of every call after Disconnect.
var ErrDisconnected = errors.New("connection refused")

// Store is a thread-safe in-memory vector store.
type Store struct {
	mu          sync.Mutex
	collections map[string]*collection
	nextID      int

	disconnected  bool
	failUpsertAt  map[int]error // 1-based upsert call -> error
	disconnectAt  int           // upsert call that drops the connection
	failDeletes   error
	failHeartbeat error
	failGet       error
	upsertCalls   int
	deleteCalls   int
	deletedColls  []string
	closed        bool
}

type collection struct {
	id       string
	metadata map[string]any
	records  map[string]domain.ChunkRecord
}

// New creates an empty store.
func New() *Store {
	return &Store{
		collections:  make(map[string]*collection),
		failUpsertAt: make(map[int]error),
	}
}

// Factory returns a driven.VectorStoreFactory that always hands out s.
// Close on the returned store does not discard s's data.
func (s *Store) Factory() driven.VectorStoreFactory {
	return func(domain.RemoteSettings) (driven.VectorStore, error) {
		return nopCloser{s}, nil
	}
}

// ==================== Fault injection ====================

// FailUpsert makes the nth Upsert call (1-based, counted from creation)
// fail with a server error wrapping err.
func (s *Store) FailUpsert(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpsertAt[n] = err
}

// DisconnectAtUpsert simulates the server going away during the nth
// Upsert call: that call and every later call fail with a network error.
func (s *Store) DisconnectAtUpsert(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectAt = n
}

// FailDeletes makes every Delete call fail with a server error wrapping err.
// A nil err clears the failure.
func (s *Store) FailDeletes(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDeletes = err
}

// FailGet makes GetIDsAndHashes fail with a server error wrapping err.
func (s *Store) FailGet(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failGet = err
}

// FailHeartbeat makes Heartbeat fail with a network error wrapping err.
func (s *Store) FailHeartbeat(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failHeartbeat = err
}

// Disconnect makes every later call fail with a network error.
func (s *Store) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected = true
}

// Reconnect undoes Disconnect.
func (s *Store) Reconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected = false
	s.disconnectAt = 0
}

// ==================== Inspection ====================

// UpsertCalls returns the number of Upsert calls received.
func (s *Store) UpsertCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertCalls
}

// DeleteCalls returns the number of Delete calls received.
func (s *Store) DeleteCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteCalls
}

// DeletedCollections returns the names dropped by DeleteCollection, in order.
func (s *Store) DeletedCollections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deletedColls...)
}

// Records returns a copy of the records of a collection ordered by id.
func (s *Store) Records(name string) []domain.ChunkRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return nil
	}
	out := make([]domain.ChunkRecord, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Seed creates a collection holding records, bypassing fault injection.
func (s *Store) Seed(name string, metadata map[string]any, records ...domain.ChunkRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.getOrCreate(name, metadata)
	for _, r := range records {
		c.records[r.ID] = r
	}
}

// Closed reports whether Close was called on s itself.
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ==================== driven.VectorStore ====================

// Heartbeat fails once the store is disconnected.
func (s *Store) Heartbeat(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.connErr("heartbeat", "", nil); err != nil {
		return err
	}
	if s.failHeartbeat != nil {
		return &domain.RemoteError{Op: "heartbeat", Network: true, Err: s.failHeartbeat}
	}
	return nil
}

// ListCollections returns every collection ordered by name.
func (s *Store) ListCollections(_ context.Context) ([]domain.CollectionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.connErr("list collections", "", nil); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]domain.CollectionInfo, 0, len(names))
	for _, name := range names {
		out = append(out, s.info(name))
	}
	return out, nil
}

// CreateCollection gets or creates a collection.
func (s *Store) CreateCollection(
	_ context.Context,
	name string,
	dimensions int,
	metadata map[string]any,
) (*domain.CollectionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.connErr("create collection", name, nil); err != nil {
		return nil, err
	}

	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	if dimensions > 0 {
		meta[domain.MetaDimensions] = dimensions
	}
	s.getOrCreate(name, meta)
	info := s.info(name)
	return &info, nil
}

// DescribeCollection returns the collection or a not-found error.
func (s *Store) DescribeCollection(_ context.Context, name string) (*domain.CollectionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.connErr("describe collection", name, nil); err != nil {
		return nil, err
	}
	if _, ok := s.collections[name]; !ok {
		return nil, notFound("describe collection", name)
	}
	info := s.info(name)
	return &info, nil
}

// DeleteCollection drops a collection.
func (s *Store) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.connErr("delete collection", name, nil); err != nil {
		return err
	}
	if _, ok := s.collections[name]; !ok {
		return notFound("delete collection", name)
	}
	delete(s.collections, name)
	s.deletedColls = append(s.deletedColls, name)
	return nil
}

// GetIDsAndHashes returns id -> (hash, model); empty for a missing collection.
func (s *Store) GetIDsAndHashes(_ context.Context, name string) (map[string]domain.RemoteEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.connErr("get", name, nil); err != nil {
		return nil, err
	}
	if s.failGet != nil {
		return nil, &domain.RemoteError{Op: "get", Collection: name, StatusCode: 500, Err: s.failGet}
	}

	out := make(map[string]domain.RemoteEntry)
	if c, ok := s.collections[name]; ok {
		for id, r := range c.records {
			out[id] = domain.RemoteEntry{Hash: r.ContentHash, Model: r.Model, Archive: r.Metadata.Archive}
		}
	}
	return out, nil
}

// Upsert writes records by id, subject to injected faults.
func (s *Store) Upsert(_ context.Context, name string, records []domain.ChunkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertCalls++
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}

	if s.disconnectAt > 0 && s.upsertCalls >= s.disconnectAt {
		s.disconnected = true
	}
	if err := s.connErr("upsert", name, ids); err != nil {
		return err
	}
	if err, ok := s.failUpsertAt[s.upsertCalls]; ok {
		return &domain.RemoteError{Op: "upsert", Collection: name, IDs: ids, StatusCode: 500, Err: err}
	}

	c, ok := s.collections[name]
	if !ok {
		e := notFound("upsert", name)
		e.IDs = ids
		return e
	}
	for _, r := range records {
		r.Embedding = append([]float32(nil), r.Embedding...)
		c.records[r.ID] = r
	}
	return nil
}

// Delete removes records by id, subject to injected faults.
func (s *Store) Delete(_ context.Context, name string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteCalls++
	if err := s.connErr("delete", name, ids); err != nil {
		return err
	}
	if s.failDeletes != nil {
		return &domain.RemoteError{Op: "delete", Collection: name, IDs: ids, StatusCode: 500, Err: s.failDeletes}
	}

	c, ok := s.collections[name]
	if !ok {
		e := notFound("delete", name)
		e.IDs = ids
		return e
	}
	for _, id := range ids {
		delete(c.records, id)
	}
	return nil
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ==================== Helpers ====================

// connErr must be called with the lock held.
func (s *Store) connErr(op, name string, ids []string) error {
	if !s.disconnected {
		return nil
	}
	return &domain.RemoteError{Op: op, Collection: name, IDs: ids, Network: true, Err: ErrDisconnected}
}

func (s *Store) getOrCreate(name string, metadata map[string]any) *collection {
	c, ok := s.collections[name]
	if !ok {
		s.nextID++
		c = &collection{
			id:       fmt.Sprintf("mem-%d", s.nextID),
			metadata: metadata,
			records:  make(map[string]domain.ChunkRecord),
		}
		s.collections[name] = c
	}
	return c
}

func (s *Store) info(name string) domain.CollectionInfo {
	c := s.collections[name]
	meta := make(map[string]any, len(c.metadata))
	for k, v := range c.metadata {
		meta[k] = v
	}
	return domain.CollectionInfo{Name: name, ID: c.id, Metadata: meta}
}

func notFound(op, name string) *domain.RemoteError {
	return &domain.RemoteError{
		Op:         op,
		Collection: name,
		StatusCode: 404,
		Err:        fmt.Errorf("collection %s: %w", name, domain.ErrNotFound),
	}
}

type nopCloser struct {
	*Store
}

func (nopCloser) Close() error { return nil }
