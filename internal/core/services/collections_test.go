package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	localmem "github.com/custodia-labs/chromasync/internal/adapters/driven/storage/memory"
	remotemem "github.com/custodia-labs/chromasync/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/chromasync/internal/core/domain"
)

func newCollectionService() (*CollectionService, *remotemem.Store, *localmem.LocalStore) {
	remote := remotemem.New()
	local := localmem.NewLocalStore()
	return NewCollectionService(remote.Factory(), local.Opener()), remote, local
}

func TestCollectionService_List(t *testing.T) {
	svc, remote, _ := newCollectionService()
	remote.Seed("b", nil)
	remote.Seed("a", map[string]any{domain.MetaModel: "m"})

	list, err := svc.List(context.Background(), domain.RemoteSettings{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, "m", list[0].Model())
}

func TestCollectionService_ListUnreachable(t *testing.T) {
	svc, remote, _ := newCollectionService()
	remote.Disconnect()

	_, err := svc.List(context.Background(), domain.RemoteSettings{})
	assert.True(t, domain.IsNetworkError(err))
}

func TestCollectionService_Delete(t *testing.T) {
	svc, remote, _ := newCollectionService()
	remote.Seed("a", nil)

	require.NoError(t, svc.Delete(context.Background(), domain.RemoteSettings{}, "a"))
	assert.Equal(t, []string{"a"}, remote.DeletedCollections())

	err := svc.Delete(context.Background(), domain.RemoteSettings{}, "a")
	assert.True(t, domain.IsNotFound(err))

	err = svc.Delete(context.Background(), domain.RemoteSettings{}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCollectionService_DeleteAll(t *testing.T) {
	svc, remote, _ := newCollectionService()
	remote.Seed("b", nil)
	remote.Seed("a", nil)

	deleted, err := svc.DeleteAll(context.Background(), domain.RemoteSettings{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, deleted)

	list, err := svc.List(context.Background(), domain.RemoteSettings{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCollectionService_LocalInfo(t *testing.T) {
	svc, _, local := newCollectionService()
	ctx := context.Background()
	require.NoError(t, local.Upsert(ctx, testCollection, []domain.ChunkRecord{record("a", "1"), record("b", "2")}))
	require.NoError(t, local.WriteManifest(ctx, &domain.Manifest{
		Collection: testCollection, ModelName: "m", EmbeddingDimensionality: 2, RecordCount: 2,
	}))

	info, err := svc.LocalInfo(ctx, "/unused", testCollection)
	require.NoError(t, err)
	assert.Equal(t, 2, info.Records)
	require.NotNil(t, info.Manifest)
	assert.Equal(t, "m", info.Manifest.ModelName)
}

func TestCollectionService_LocalInfoMissing(t *testing.T) {
	svc, _, _ := newCollectionService()

	_, err := svc.LocalInfo(context.Background(), "/unused", "nothing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
