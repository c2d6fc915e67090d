package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/chromasync/internal/core/domain"
)

const testCollection = "handbook"

// setupTestStore creates a store in a temporary directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(CollectionDir(t.TempDir(), testCollection))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func testRecord(id, text string) domain.ChunkRecord {
	return domain.ChunkRecord{
		ID:          id,
		Text:        text,
		Embedding:   []float32{0.25, -1.5, 3},
		ContentHash: "hash-" + text,
		Model:       "all-minilm",
		Metadata: domain.RecordMetadata{
			Path:          "docs/" + id + ".md",
			SequenceIndex: 2,
			DocumentType:  domain.TypeMarkdown,
			Archive:       "handbook.zip",
			StartOffset:   10,
			EndOffset:     20,
		},
	}
}

func TestOpen_CreatesCollectionDirectory(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir, testCollection)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(filepath.Join(dir, "handbook.chromasync", "collection.db"))
	assert.NoError(t, err)
}

func TestNewStore_ReopenKeepsSchema(t *testing.T) {
	dir := CollectionDir(t.TempDir(), testCollection)
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, testCollection, []domain.ChunkRecord{testRecord("a", "alpha")}))
	require.NoError(t, store.Close())

	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	ids, err := store.LoadExistingIDs(ctx, testCollection)
	require.NoError(t, err)
	assert.Contains(t, ids, "a")
}

func TestStore_UpsertRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := testRecord("a", "alpha")
	rec.Metadata.Language = "go"
	require.NoError(t, store.Upsert(ctx, testCollection, []domain.ChunkRecord{rec}))

	got, err := store.LoadRecords(ctx, testCollection, []string{"a"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec, got[0])
}

func TestStore_UpsertIsIdempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	records := []domain.ChunkRecord{testRecord("a", "alpha"), testRecord("b", "beta")}

	require.NoError(t, store.Upsert(ctx, testCollection, records))
	first, err := store.AllRecords(ctx, testCollection)
	require.NoError(t, err)

	require.NoError(t, store.Upsert(ctx, testCollection, records))
	second, err := store.AllRecords(ctx, testCollection)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	n, err := store.Count(ctx, testCollection)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_UpsertOverwritesChangedContent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testCollection, []domain.ChunkRecord{testRecord("a", "alpha")}))

	changed := testRecord("a", "alpha")
	changed.Model = "nomic-embed-text"
	changed.Embedding = []float32{9}
	require.NoError(t, store.Upsert(ctx, testCollection, []domain.ChunkRecord{changed}))

	got, err := store.LoadRecords(ctx, testCollection, []string{"a"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "nomic-embed-text", got[0].Model)
	assert.Equal(t, []float32{9}, got[0].Embedding)
}

func TestStore_UpsertRejectsEmptyID(t *testing.T) {
	store := setupTestStore(t)

	err := store.Upsert(context.Background(), testCollection, []domain.ChunkRecord{testRecord("", "x")})
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestStore_LoadExistingIDsEmpty(t *testing.T) {
	store := setupTestStore(t)

	ids, err := store.LoadExistingIDs(context.Background(), testCollection)
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestStore_LoadRecordsSkipsUnknown(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testCollection, []domain.ChunkRecord{
		testRecord("b", "beta"), testRecord("a", "alpha"),
	}))

	got, err := store.LoadRecords(ctx, testCollection, []string{"b", "missing", "a"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)

	got, err = store.LoadRecords(ctx, testCollection, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_LoadRecordsManyIDs(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var records []domain.ChunkRecord
	var ids []string
	for i := 0; i < idsPerQuery+37; i++ {
		id := fmt.Sprintf("id-%04d", i)
		records = append(records, testRecord(id, id))
		ids = append(ids, id)
	}
	require.NoError(t, store.Upsert(ctx, testCollection, records))

	got, err := store.LoadRecords(ctx, testCollection, ids)
	require.NoError(t, err)
	assert.Len(t, got, len(ids))
}

func TestStore_Entries(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testCollection, []domain.ChunkRecord{testRecord("a", "alpha")}))

	entries, err := store.Entries(ctx, testCollection)
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.LocalEntry{
		"a": {Hash: "hash-alpha", Model: "all-minilm", Archive: "handbook.zip"},
	}, entries)
}

func TestStore_Prune(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testCollection, []domain.ChunkRecord{
		testRecord("a", "alpha"), testRecord("b", "beta"), testRecord("c", "gamma"),
	}))

	pruned, err := store.Prune(ctx, testCollection, map[string]struct{}{"b": {}})
	require.NoError(t, err)
	assert.Equal(t, 2, pruned)

	ids, err := store.LoadExistingIDs(ctx, testCollection)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"b": {}}, ids)

	pruned, err = store.Prune(ctx, testCollection, map[string]struct{}{"b": {}})
	require.NoError(t, err)
	assert.Zero(t, pruned)
}

func TestStore_CollectionsAreIsolated(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testCollection, []domain.ChunkRecord{testRecord("a", "alpha")}))
	require.NoError(t, store.Upsert(ctx, "other", []domain.ChunkRecord{testRecord("a", "alpha")}))
	require.NoError(t, store.DeleteCollection(ctx, "other"))

	ids, err := store.LoadExistingIDs(ctx, testCollection)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestStore_Manifest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	m, err := store.ReadManifest(ctx, testCollection)
	require.NoError(t, err)
	assert.Nil(t, m)

	want := &domain.Manifest{
		Collection:              testCollection,
		ModelName:               "all-minilm",
		EmbeddingDimensionality: 384,
		ChunkSize:               1000,
		ChunkOverlap:            100,
		RecordCount:             3,
		SourceArchive:           "handbook.zip",
		LastRunID:               "run-1",
		UpdatedAt:               time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.WriteManifest(ctx, want))

	got, err := store.ReadManifest(ctx, testCollection)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.ModelName, got.ModelName)
	assert.Equal(t, want.EmbeddingDimensionality, got.EmbeddingDimensionality)
	assert.Equal(t, want.RecordCount, got.RecordCount)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt))

	other, err := store.ReadManifest(ctx, "other")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestStore_WriteManifestNil(t *testing.T) {
	store := setupTestStore(t)
	assert.ErrorIs(t, store.WriteManifest(context.Background(), nil), domain.ErrStorage)
}

func TestStore_ManifestCorrupt(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), manifestFile), []byte("not = [toml"), 0600))

	_, err := store.ReadManifest(context.Background(), testCollection)
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestStore_DeleteCollection(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testCollection, []domain.ChunkRecord{testRecord("a", "alpha")}))
	require.NoError(t, store.WriteManifest(ctx, &domain.Manifest{Collection: testCollection}))

	require.NoError(t, store.DeleteCollection(ctx, testCollection))

	ids, err := store.LoadExistingIDs(ctx, testCollection)
	require.NoError(t, err)
	assert.Empty(t, ids)

	m, err := store.ReadManifest(ctx, testCollection)
	require.NoError(t, err)
	assert.Nil(t, m)

	// Deleting twice is fine.
	assert.NoError(t, store.DeleteCollection(ctx, testCollection))
}

func TestStore_ClosedDatabaseIsStorageError(t *testing.T) {
	store, err := NewStore(CollectionDir(t.TempDir(), testCollection))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.LoadExistingIDs(context.Background(), testCollection)
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestFloat32Conversion(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.4e38}
	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}
