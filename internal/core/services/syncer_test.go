package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	localmem "github.com/custodia-labs/chromasync/internal/adapters/driven/storage/memory"
	remotemem "github.com/custodia-labs/chromasync/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/chromasync/internal/core/domain"
)

const testCollection = "docs"

func record(id, hash string) domain.ChunkRecord {
	return domain.ChunkRecord{
		ID:          id,
		Text:        "text of " + id,
		ContentHash: hash,
		Model:       "m",
		Embedding:   []float32{0.5, 0.5},
		Metadata:    domain.RecordMetadata{Path: id + ".txt"},
	}
}

// localWith returns a local store holding records and the entries map a run
// would hand to the syncer.
func localWith(t *testing.T, records ...domain.ChunkRecord) (*localmem.LocalStore, map[string]domain.LocalEntry) {
	t.Helper()
	local := localmem.NewLocalStore()
	require.NoError(t, local.Upsert(context.Background(), testCollection, records))
	entries, err := local.Entries(context.Background(), testCollection)
	require.NoError(t, err)
	return local, entries
}

func request(local *localmem.LocalStore, entries map[string]domain.LocalEntry) SyncRequest {
	return SyncRequest{
		Collection:   testCollection,
		Local:        local,
		Entries:      entries,
		Model:        "m",
		Dimensions:   2,
		ChunkSize:    1000,
		ChunkOverlap: 100,
		BatchSize:    2,
	}
}

func remoteIDs(remote *remotemem.Store) []string {
	var ids []string
	for _, r := range remote.Records(testCollection) {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestComputePlan(t *testing.T) {
	local := map[string]domain.LocalEntry{
		"a": {Hash: "1", Model: "m"},
		"b": {Hash: "2", Model: "m"},
		"c": {Hash: "3", Model: "m"},
	}
	remote := map[string]domain.RemoteEntry{
		"b": {Hash: "2", Model: "m"},
		"c": {Hash: "changed", Model: "m"},
		"d": {Hash: "4", Model: "m"},
	}

	plan := ComputePlan(local, remote)
	assert.Equal(t, []string{"a"}, plan.ToAdd)
	assert.Equal(t, []string{"c"}, plan.ToUpdate)
	assert.Equal(t, []string{"d"}, plan.ToDelete)
}

func TestComputePlan_ModelChangeIsUpdate(t *testing.T) {
	plan := ComputePlan(
		map[string]domain.LocalEntry{"a": {Hash: "1", Model: "new"}},
		map[string]domain.RemoteEntry{"a": {Hash: "1", Model: "old"}},
	)
	assert.Equal(t, []string{"a"}, plan.ToUpdate)
	assert.Empty(t, plan.ToAdd)
	assert.Empty(t, plan.ToDelete)
}

func TestComputePlan_ArchiveChangeIsUpdate(t *testing.T) {
	plan := ComputePlan(
		map[string]domain.LocalEntry{"a": {Hash: "1", Model: "m", Archive: "v2.zip"}},
		map[string]domain.RemoteEntry{"a": {Hash: "1", Model: "m", Archive: "v1.zip"}},
	)
	assert.Equal(t, []string{"a"}, plan.ToUpdate)
	assert.Empty(t, plan.ToAdd)
}

func TestComputePlan_Empty(t *testing.T) {
	assert.True(t, ComputePlan(nil, nil).IsNoop())
}

func TestSync_ConvergesRemote(t *testing.T) {
	local, entries := localWith(t, record("a", "1"), record("b", "2"), record("c", "3"))
	remote := remotemem.New()
	remote.Seed(testCollection, nil, record("b", "2"), record("c", "old"), record("d", "4"))

	summary, err := NewSyncer(remote).Sync(context.Background(), request(local, entries))
	require.NoError(t, err)

	assert.Equal(t, domain.SyncDone, summary.State)
	assert.True(t, summary.OK())
	assert.Equal(t, 1, summary.Added)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Deleted)
	assert.False(t, summary.ResetTarget)
	assert.Equal(t, []string{"a", "b", "c"}, remoteIDs(remote))

	got, err := remote.GetIDsAndHashes(context.Background(), testCollection)
	require.NoError(t, err)
	assert.Equal(t, "3", got["c"].Hash)
}

func TestSync_SecondRunIsNoop(t *testing.T) {
	local, entries := localWith(t, record("a", "1"), record("b", "2"), record("c", "3"))
	remote := remotemem.New()
	syncer := NewSyncer(remote)

	_, err := syncer.Sync(context.Background(), request(local, entries))
	require.NoError(t, err)
	upserts := remote.UpsertCalls()

	summary, err := syncer.Sync(context.Background(), request(local, entries))
	require.NoError(t, err)
	assert.True(t, summary.Plan.IsNoop())
	assert.Equal(t, upserts, remote.UpsertCalls())
	assert.Equal(t, 0, remote.DeleteCalls())
}

func TestSync_CreatesTaggedCollection(t *testing.T) {
	local, entries := localWith(t, record("a", "1"))
	remote := remotemem.New()

	_, err := NewSyncer(remote).Sync(context.Background(), request(local, entries))
	require.NoError(t, err)

	info, err := remote.DescribeCollection(context.Background(), testCollection)
	require.NoError(t, err)
	assert.Equal(t, "m", info.Model())
	assert.Equal(t, 2, info.Dimensions())
	assert.Equal(t, 1000, info.Metadata[domain.MetaChunkSize])
}

func TestSync_DryRunDoesNotMutate(t *testing.T) {
	local, entries := localWith(t, record("a", "1"), record("b", "2"))
	remote := remotemem.New()
	remote.Seed(testCollection, nil, record("b", "old"), record("z", "9"))

	req := request(local, entries)
	req.DryRun = true
	summary, err := NewSyncer(remote).Sync(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, domain.SyncDiff, summary.State)
	assert.Equal(t, []string{"a"}, summary.Plan.ToAdd)
	assert.Equal(t, []string{"b"}, summary.Plan.ToUpdate)
	assert.Equal(t, []string{"z"}, summary.Plan.ToDelete)
	assert.Equal(t, 0, remote.UpsertCalls())
	assert.Equal(t, 0, remote.DeleteCalls())
	assert.Equal(t, []string{"b", "z"}, remoteIDs(remote))
}

func TestSync_DryRunOnMissingCollection(t *testing.T) {
	local, entries := localWith(t, record("a", "1"))
	remote := remotemem.New()

	req := request(local, entries)
	req.DryRun = true
	summary, err := NewSyncer(remote).Sync(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, summary.Plan.ToAdd)
	_, err = remote.DescribeCollection(context.Background(), testCollection)
	assert.True(t, domain.IsNotFound(err))
}

func TestSync_ResetTarget(t *testing.T) {
	local, entries := localWith(t, record("a", "1"), record("b", "2"))
	remote := remotemem.New()
	remote.Seed(testCollection, nil, record("a", "1"), record("old", "x"))

	req := request(local, entries)
	req.ResetTarget = true
	summary, err := NewSyncer(remote).Sync(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, summary.ResetTarget)
	assert.Equal(t, []string{testCollection}, remote.DeletedCollections())
	assert.Equal(t, []string{"a", "b"}, summary.Plan.ToAdd)
	assert.Empty(t, summary.Plan.ToDelete)
	assert.Equal(t, []string{"a", "b"}, remoteIDs(remote))
}

func TestSync_ResetTargetWhenMissing(t *testing.T) {
	local, entries := localWith(t, record("a", "1"))
	remote := remotemem.New()

	req := request(local, entries)
	req.ResetTarget = true
	_, err := NewSyncer(remote).Sync(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, remoteIDs(remote))
}

func TestSync_ResetAll(t *testing.T) {
	local, entries := localWith(t, record("a", "1"))
	remote := remotemem.New()
	remote.Seed("other", nil, record("x", "1"))
	remote.Seed(testCollection, nil, record("y", "1"))

	req := request(local, entries)
	req.ResetAll = true
	summary, err := NewSyncer(remote).Sync(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{testCollection, "other"}, summary.DeletedCollections)
	assert.True(t, summary.ResetTarget)
	assert.Nil(t, remote.Records("other"))
	assert.Equal(t, []string{"a"}, remoteIDs(remote))
}

func TestSync_ResetAllDryRunOnlyLists(t *testing.T) {
	local, entries := localWith(t, record("a", "1"))
	remote := remotemem.New()
	remote.Seed("other", nil, record("x", "1"))

	req := request(local, entries)
	req.ResetAll = true
	req.DryRun = true
	summary, err := NewSyncer(remote).Sync(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"other"}, summary.DeletedCollections)
	assert.Empty(t, remote.DeletedCollections())
	assert.Len(t, remote.Records("other"), 1)
}

func TestSync_ModelMismatchForcesReset(t *testing.T) {
	local, entries := localWith(t, record("a", "1"))
	remote := remotemem.New()
	remote.Seed(testCollection, map[string]any{domain.MetaModel: "other-model"}, record("a", "1"))

	summary, err := NewSyncer(remote).Sync(context.Background(), request(local, entries))
	require.NoError(t, err)

	assert.True(t, summary.ResetTarget)
	assert.Equal(t, []string{testCollection}, remote.DeletedCollections())

	info, err := remote.DescribeCollection(context.Background(), testCollection)
	require.NoError(t, err)
	assert.Equal(t, "m", info.Model())
}

func TestSync_DimensionMismatchForcesReset(t *testing.T) {
	local, entries := localWith(t, record("a", "1"))
	remote := remotemem.New()
	remote.Seed(testCollection, map[string]any{domain.MetaDimensions: 3})

	summary, err := NewSyncer(remote).Sync(context.Background(), request(local, entries))
	require.NoError(t, err)
	assert.True(t, summary.ResetTarget)
}

func TestSync_PartialFailure(t *testing.T) {
	local, entries := localWith(t,
		record("a", "1"), record("b", "1"), record("c", "1"), record("d", "1"), record("e", "1"))
	remote := remotemem.New()
	remote.FailUpsert(2, errors.New("internal error"))

	summary, err := NewSyncer(remote).Sync(context.Background(), request(local, entries))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSyncIncomplete)

	assert.Equal(t, domain.SyncDone, summary.State)
	assert.False(t, summary.OK())
	assert.Equal(t, 3, summary.Added)
	require.Len(t, summary.FailedBatches, 1)
	assert.True(t, summary.FailedBatches[0].Attempted)
	assert.Equal(t, "upsert", summary.FailedBatches[0].Op)
	assert.Equal(t, []string{"c", "d"}, summary.FailedIDs())
	assert.Equal(t, []string{"a", "b", "e"}, remoteIDs(remote))
}

func TestSync_RetryAfterPartialFailure(t *testing.T) {
	local, entries := localWith(t, record("a", "1"), record("b", "1"), record("c", "1"))
	remote := remotemem.New()
	remote.FailUpsert(1, errors.New("internal error"))
	syncer := NewSyncer(remote)

	_, err := syncer.Sync(context.Background(), request(local, entries))
	require.Error(t, err)

	summary, err := syncer.Sync(context.Background(), request(local, entries))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, summary.Plan.ToAdd)
	assert.Equal(t, []string{"a", "b", "c"}, remoteIDs(remote))
}

func TestSync_DisconnectAborts(t *testing.T) {
	local, entries := localWith(t,
		record("a", "1"), record("b", "1"), record("c", "1"), record("d", "1"), record("e", "1"))
	remote := remotemem.New()
	remote.DisconnectAtUpsert(2)

	summary, err := NewSyncer(remote).Sync(context.Background(), request(local, entries))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSyncAborted)
	assert.True(t, domain.IsNetworkError(err))

	assert.Equal(t, domain.SyncAborted, summary.State)
	require.Error(t, summary.Err)
	assert.Equal(t, 2, summary.Added)
	require.Len(t, summary.FailedBatches, 2)
	assert.True(t, summary.FailedBatches[0].Attempted)
	assert.Equal(t, []string{"c", "d"}, summary.FailedBatches[0].IDs)
	assert.False(t, summary.FailedBatches[1].Attempted)
	assert.Equal(t, []string{"e"}, summary.FailedBatches[1].IDs)
}

func TestSync_DeleteFailureContinues(t *testing.T) {
	local, entries := localWith(t, record("a", "1"))
	remote := remotemem.New()
	remote.Seed(testCollection, nil, record("x", "1"))
	remote.FailDeletes(errors.New("nope"))

	summary, err := NewSyncer(remote).Sync(context.Background(), request(local, entries))
	assert.ErrorIs(t, err, domain.ErrSyncIncomplete)
	assert.Equal(t, 1, summary.Added)
	assert.Equal(t, 0, summary.Deleted)
	assert.Equal(t, []string{"x"}, summary.FailedIDs())
}

func TestSync_HeartbeatFailureAbortsAtInit(t *testing.T) {
	local, entries := localWith(t, record("a", "1"))
	remote := remotemem.New()
	remote.Disconnect()

	summary, err := NewSyncer(remote).Sync(context.Background(), request(local, entries))
	assert.ErrorIs(t, err, domain.ErrSyncAborted)
	assert.Equal(t, domain.SyncAborted, summary.State)
	assert.True(t, summary.Plan.IsNoop())
}

func TestSync_DiffFailureMutatesNothing(t *testing.T) {
	local, entries := localWith(t, record("a", "1"))
	remote := remotemem.New()
	remote.FailGet(errors.New("read timeout"))

	summary, err := NewSyncer(remote).Sync(context.Background(), request(local, entries))
	assert.ErrorIs(t, err, domain.ErrSyncAborted)
	assert.Equal(t, domain.SyncAborted, summary.State)

	collections, err := remote.ListCollections(context.Background())
	require.NoError(t, err)
	assert.Empty(t, collections)
	assert.Equal(t, 0, remote.UpsertCalls())
}

func TestSync_MissingLocalRecordAborts(t *testing.T) {
	local, entries := localWith(t, record("a", "1"))
	entries["ghost"] = domain.LocalEntry{Hash: "1", Model: "m"}
	remote := remotemem.New()

	summary, err := NewSyncer(remote).Sync(context.Background(), request(local, entries))
	assert.ErrorIs(t, err, domain.ErrSyncAborted)
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.Equal(t, domain.SyncAborted, summary.State)
	assert.Equal(t, 0, remote.UpsertCalls())
}

func TestSync_CanceledContext(t *testing.T) {
	local, entries := localWith(t, record("a", "1"))
	remote := remotemem.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := NewSyncer(remote).Sync(ctx, request(local, entries))
	require.Error(t, err)
	assert.Equal(t, domain.SyncAborted, summary.State)
}
