package domain

import (
	"sort"
	"time"
)

// SyncPlan holds the three disjoint id sets that converge a remote
// collection to the local state. It is computed per run and never persisted.
type SyncPlan struct {
	// ToAdd are ids present locally and absent remotely.
	ToAdd []string

	// ToUpdate are ids present on both sides whose content hash or model differs.
	ToUpdate []string

	// ToDelete are ids present remotely and absent locally.
	ToDelete []string
}

// IsNoop returns true if nothing needs to change.
func (p SyncPlan) IsNoop() bool {
	return len(p.ToAdd) == 0 && len(p.ToUpdate) == 0 && len(p.ToDelete) == 0
}

// Upserts returns ToAdd and ToUpdate merged and sorted.
func (p SyncPlan) Upserts() []string {
	ids := make([]string, 0, len(p.ToAdd)+len(p.ToUpdate))
	ids = append(ids, p.ToAdd...)
	ids = append(ids, p.ToUpdate...)
	sort.Strings(ids)
	return ids
}

// SyncState is a state of the reconciliation state machine.
type SyncState string

// Syncer states, in order of a successful run.
const (
	SyncInit        SyncState = "INIT"
	SyncResetAll    SyncState = "RESET_ALL"
	SyncResetTarget SyncState = "RESET_TARGET"
	SyncDiff        SyncState = "DIFF"
	SyncApply       SyncState = "APPLY"
	SyncDone        SyncState = "DONE"
	SyncAborted     SyncState = "ABORTED"
)

// BatchFailure reports one remote batch that failed to apply.
type BatchFailure struct {
	// Op is "upsert" or "delete".
	Op string

	// IDs are the ids the batch carried.
	IDs []string

	// Attempted is false when the batch was skipped after an abort.
	Attempted bool

	Err error
}

// SyncSummary is the itemised outcome of a sync run for one collection.
type SyncSummary struct {
	Collection string
	State      SyncState
	Plan       SyncPlan

	// ResetTarget is true when the target was dropped before DIFF.
	ResetTarget bool

	// DeletedCollections lists collections removed by RESET_ALL.
	DeletedCollections []string

	Added   int
	Updated int
	Deleted int

	// FailedBatches lists every batch that did not apply.
	FailedBatches []BatchFailure

	// Err is the fatal error that moved the run to ABORTED, if any.
	Err error

	Duration time.Duration
}

// FailedIDs returns every id whose operation did not apply, sorted.
func (s *SyncSummary) FailedIDs() []string {
	if s == nil {
		return nil
	}
	var ids []string
	for _, f := range s.FailedBatches {
		ids = append(ids, f.IDs...)
	}
	sort.Strings(ids)
	return ids
}

// OK returns true when the run reached DONE with every batch applied.
func (s *SyncSummary) OK() bool {
	return s != nil && s.State == SyncDone && len(s.FailedBatches) == 0
}
