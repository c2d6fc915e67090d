package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
	"github.com/custodia-labs/chromasync/internal/logger"
)

// SyncRequest describes one reconciliation of a remote collection with the
// completed local collection.
type SyncRequest struct {
	Collection string

	// Local supplies the records to upsert.
	Local driven.LocalStore

	// Entries is the complete local id -> (hash, model) map.
	Entries map[string]domain.LocalEntry

	Model        string
	Dimensions   int
	ChunkSize    int
	ChunkOverlap int

	// ResetTarget drops the target collection before DIFF.
	ResetTarget bool

	// ResetAll drops every remote collection before DIFF.
	ResetAll bool

	// DryRun stops after DIFF without mutating the remote.
	DryRun bool

	// BatchSize bounds the ids per remote call.
	BatchSize int
}

// Syncer converges a remote collection to the local state.
type Syncer struct {
	remote driven.VectorStore
}

// NewSyncer creates a syncer writing to remote.
func NewSyncer(remote driven.VectorStore) *Syncer {
	return &Syncer{remote: remote}
}

// ComputePlan diffs the local and remote views. An id on both sides whose
// content hash, model or source archive differs is an update. Every list
// is sorted.
func ComputePlan(local map[string]domain.LocalEntry, remote map[string]domain.RemoteEntry) domain.SyncPlan {
	var plan domain.SyncPlan
	for id, l := range local {
		r, ok := remote[id]
		switch {
		case !ok:
			plan.ToAdd = append(plan.ToAdd, id)
		case r.Hash != l.Hash || r.Model != l.Model || r.Archive != l.Archive:
			plan.ToUpdate = append(plan.ToUpdate, id)
		}
	}
	for id := range remote {
		if _, ok := local[id]; !ok {
			plan.ToDelete = append(plan.ToDelete, id)
		}
	}
	sort.Strings(plan.ToAdd)
	sort.Strings(plan.ToUpdate)
	sort.Strings(plan.ToDelete)
	return plan
}

// Sync runs INIT -> RESET_ALL? -> RESET_TARGET? -> DIFF -> APPLY -> DONE.
// The summary is always returned. The error is non-nil when the run was
// aborted or any batch failed to apply.
//
//nolint:gocyclo // State machine with necessary sequential steps
func (s *Syncer) Sync(ctx context.Context, req SyncRequest) (*domain.SyncSummary, error) {
	start := time.Now()
	summary := &domain.SyncSummary{Collection: req.Collection, State: domain.SyncInit}
	defer func() { summary.Duration = time.Since(start) }()

	if req.BatchSize <= 0 {
		req.BatchSize = domain.DefaultSyncBatchSize
	}

	abort := func(err error) (*domain.SyncSummary, error) {
		logger.Section("Sync: ABORTED")
		logger.Error("Sync of %s aborted in %s: %v", req.Collection, summary.State, err)
		summary.State = domain.SyncAborted
		summary.Err = err
		return summary, fmt.Errorf("%w: %w", domain.ErrSyncAborted, err)
	}

	// INIT
	logger.Section("Sync: INIT")
	if err := s.remote.Heartbeat(ctx); err != nil {
		return abort(err)
	}

	// RESET_ALL
	if req.ResetAll {
		summary.State = domain.SyncResetAll
		logger.Section("Sync: RESET_ALL")
		deleted, err := s.resetAll(ctx, req.DryRun)
		summary.DeletedCollections = deleted
		if err != nil {
			return abort(err)
		}
	}

	// RESET_TARGET, requested or forced by a model/dimensionality mismatch
	reset := req.ResetTarget || req.ResetAll
	if !reset {
		mismatch, err := s.targetMismatch(ctx, req)
		if err != nil {
			return abort(err)
		}
		reset = mismatch
	}
	if reset && !req.ResetAll {
		summary.State = domain.SyncResetTarget
		logger.Section("Sync: RESET_TARGET")
		if !req.DryRun {
			err := s.remote.DeleteCollection(ctx, req.Collection)
			if err != nil && !domain.IsNotFound(err) {
				return abort(err)
			}
			logger.Info("Deleted remote collection %s", req.Collection)
		}
	}
	summary.ResetTarget = reset

	// DIFF
	summary.State = domain.SyncDiff
	logger.Section("Sync: DIFF")
	remote := map[string]domain.RemoteEntry{}
	if !reset {
		var err error
		remote, err = s.remote.GetIDsAndHashes(ctx, req.Collection)
		if err != nil {
			return abort(err)
		}
	}
	summary.Plan = ComputePlan(req.Entries, remote)
	logger.Info("Plan for %s: %d to add, %d to update, %d to delete",
		req.Collection, len(summary.Plan.ToAdd), len(summary.Plan.ToUpdate), len(summary.Plan.ToDelete))

	if req.DryRun {
		return summary, nil
	}

	// APPLY
	summary.State = domain.SyncApply
	logger.Section("Sync: APPLY")
	if _, err := s.remote.CreateCollection(ctx, req.Collection, req.Dimensions, collectionMetadata(req)); err != nil {
		return abort(err)
	}
	if err := s.apply(ctx, req, summary); err != nil {
		return abort(err)
	}

	summary.State = domain.SyncDone
	logger.Section("Sync: DONE")
	if len(summary.FailedBatches) > 0 {
		failed := summary.FailedIDs()
		logger.Error("Sync of %s incomplete: %d ids not synced", req.Collection, len(failed))
		return summary, fmt.Errorf("%w: %d of %d ids not synced", domain.ErrSyncIncomplete,
			len(failed), len(summary.Plan.ToDelete)+len(summary.Plan.ToAdd)+len(summary.Plan.ToUpdate))
	}
	return summary, nil
}

// resetAll drops every remote collection and returns their names. A dry run
// only lists them.
func (s *Syncer) resetAll(ctx context.Context, dryRun bool) ([]string, error) {
	collections, err := s.remote.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	var deleted []string
	for _, c := range collections {
		if dryRun {
			logger.Info("Would delete remote collection %s", c.Name)
			deleted = append(deleted, c.Name)
			continue
		}
		if err := s.remote.DeleteCollection(ctx, c.Name); err != nil && !domain.IsNotFound(err) {
			return deleted, err
		}
		logger.Info("Deleted remote collection %s", c.Name)
		deleted = append(deleted, c.Name)
	}
	return deleted, nil
}

// targetMismatch reports whether the remote target was built with another
// model or dimensionality.
func (s *Syncer) targetMismatch(ctx context.Context, req SyncRequest) (bool, error) {
	info, err := s.remote.DescribeCollection(ctx, req.Collection)
	if domain.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if model := info.Model(); model != "" && model != req.Model {
		logger.Warn("Remote collection %s was built with model %s, resetting", req.Collection, model)
		return true, nil
	}
	if dims := info.Dimensions(); dims != 0 && req.Dimensions != 0 && dims != req.Dimensions {
		logger.Warn("Remote collection %s has %d dimensions, expected %d, resetting",
			req.Collection, dims, req.Dimensions)
		return true, nil
	}
	return false, nil
}

// apply issues deletes, then upserts, batch by batch. A failed batch is
// recorded and the run continues; a network failure followed by a failed
// heartbeat stops it, and the error is returned.
func (s *Syncer) apply(ctx context.Context, req SyncRequest, summary *domain.SyncSummary) error {
	plan := summary.Plan
	added := toSet(plan.ToAdd)

	var batches []applyBatch
	for _, ids := range chunkIDs(plan.ToDelete, req.BatchSize) {
		batches = append(batches, applyBatch{op: "delete", ids: ids})
	}
	for _, ids := range chunkIDs(plan.Upserts(), req.BatchSize) {
		batches = append(batches, applyBatch{op: "upsert", ids: ids})
	}

	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			skipRemaining(summary, batches[i:], err)
			return err
		}

		var err error
		switch b.op {
		case "delete":
			err = s.remote.Delete(ctx, req.Collection, b.ids)
		case "upsert":
			err = s.upsert(ctx, req, b.ids)
			if errors.Is(err, domain.ErrStorage) {
				skipRemaining(summary, batches[i:], err)
				return err
			}
		}

		if err == nil {
			switch b.op {
			case "delete":
				summary.Deleted += len(b.ids)
			case "upsert":
				for _, id := range b.ids {
					if _, ok := added[id]; ok {
						summary.Added++
					} else {
						summary.Updated++
					}
				}
			}
			logger.Debug("Applied %s batch %d/%d (%d ids)", b.op, i+1, len(batches), len(b.ids))
			continue
		}

		logger.Warn("%s batch %d/%d failed (%d ids): %v", b.op, i+1, len(batches), len(b.ids), err)
		summary.FailedBatches = append(summary.FailedBatches, domain.BatchFailure{
			Op: b.op, IDs: b.ids, Attempted: true, Err: err,
		})

		if domain.IsNetworkError(err) {
			if hbErr := s.remote.Heartbeat(ctx); hbErr != nil {
				skipRemaining(summary, batches[i+1:], hbErr)
				return fmt.Errorf("remote unreachable after %s batch: %w", b.op, hbErr)
			}
		}
	}
	return nil
}

// upsert loads the batch's records from the local store and sends them.
func (s *Syncer) upsert(ctx context.Context, req SyncRequest, ids []string) error {
	if req.Local == nil {
		return fmt.Errorf("%w: no local store to read records from", domain.ErrStorage)
	}
	records, err := req.Local.LoadRecords(ctx, req.Collection, ids)
	if err != nil {
		return err
	}
	if len(records) != len(ids) {
		return fmt.Errorf("%w: local store returned %d of %d records", domain.ErrStorage, len(records), len(ids))
	}
	return s.remote.Upsert(ctx, req.Collection, records)
}

// applyBatch is one remote call of APPLY.
type applyBatch struct {
	op  string
	ids []string
}

// skipRemaining records batches that were never attempted.
func skipRemaining(summary *domain.SyncSummary, rest []applyBatch, cause error) {
	for _, b := range rest {
		summary.FailedBatches = append(summary.FailedBatches, domain.BatchFailure{
			Op: b.op, IDs: b.ids, Attempted: false, Err: cause,
		})
	}
}

// collectionMetadata tags the remote collection with how it was built.
func collectionMetadata(req SyncRequest) map[string]any {
	return map[string]any{
		domain.MetaModel:        req.Model,
		domain.MetaDimensions:   req.Dimensions,
		domain.MetaChunkSize:    req.ChunkSize,
		domain.MetaChunkOverlap: req.ChunkOverlap,
	}
}

func chunkIDs(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		out = append(out, ids[start:min(start+size, len(ids))])
	}
	return out
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
