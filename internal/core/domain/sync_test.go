package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSyncPlan_IsNoop tests empty plan detection
func TestSyncPlan_IsNoop(t *testing.T) {
	assert.True(t, SyncPlan{}.IsNoop())
	assert.False(t, SyncPlan{ToDelete: []string{"a"}}.IsNoop())
}

// TestSyncPlan_Upserts tests merging of add and update sets
func TestSyncPlan_Upserts(t *testing.T) {
	p := SyncPlan{ToAdd: []string{"c", "a"}, ToUpdate: []string{"b"}}
	assert.Equal(t, []string{"a", "b", "c"}, p.Upserts())
}

// TestSyncSummary_OK tests success classification
func TestSyncSummary_OK(t *testing.T) {
	var nilSummary *SyncSummary
	assert.False(t, nilSummary.OK())
	assert.Nil(t, nilSummary.FailedIDs())

	s := &SyncSummary{State: SyncDone}
	assert.True(t, s.OK())

	s.FailedBatches = []BatchFailure{
		{Op: "upsert", IDs: []string{"z", "x"}, Attempted: true, Err: errors.New("500")},
		{Op: "delete", IDs: []string{"y"}},
	}
	assert.False(t, s.OK())
	assert.Equal(t, []string{"x", "y", "z"}, s.FailedIDs())

	assert.False(t, (&SyncSummary{State: SyncAborted}).OK())
}

// TestManifest_Compatible tests model and dimension matching
func TestManifest_Compatible(t *testing.T) {
	var missing *Manifest
	assert.True(t, missing.Compatible("m", 384))

	m := &Manifest{ModelName: "m", EmbeddingDimensionality: 384}
	assert.True(t, m.Compatible("m", 384))
	assert.False(t, m.Compatible("other", 384))
	assert.False(t, m.Compatible("m", 768))
}

// TestCollectionInfo_Tags tests metadata accessors
func TestCollectionInfo_Tags(t *testing.T) {
	var missing *CollectionInfo
	assert.Empty(t, missing.Model())
	assert.Zero(t, missing.Dimensions())

	info := &CollectionInfo{Metadata: map[string]any{MetaModel: "m", MetaDimensions: float64(384)}}
	assert.Equal(t, "m", info.Model())
	assert.Equal(t, 384, info.Dimensions())

	info.Metadata[MetaDimensions] = 768
	assert.Equal(t, 768, info.Dimensions())

	info.Metadata[MetaDimensions] = "bad"
	assert.Zero(t, info.Dimensions())
}
