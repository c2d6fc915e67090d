package domain

import "time"

// RunReport summarises one pipeline run.
type RunReport struct {
	RunID      string
	Collection string
	Archive    string

	// LocalPath is the local database directory.
	LocalPath string

	Model      string
	Dimensions int

	// Documents counts supported entries that were chunked.
	Documents int

	// Skipped counts unsupported, hidden or binary entries.
	Skipped int

	// EmptyDocuments counts supported entries with no text.
	EmptyDocuments int

	Chunks   int
	Embedded int
	Reused   int
	Pruned   int

	// LocalReset is true when an incompatible manifest forced a rebuild.
	LocalReset bool

	// Sync is nil when syncing was disabled.
	Sync *SyncSummary

	Duration time.Duration
}

// Stage names a step of the pipeline for progress reporting.
type Stage string

// Pipeline stages.
const (
	StageExtract Stage = "extract"
	StageEmbed   Stage = "embed"
	StageStore   Stage = "store"
	StageSync    Stage = "sync"
	StageDone    Stage = "done"
)

// ProgressEvent reports progress within a stage.
// Total is 0 when the stage size is not known yet.
type ProgressEvent struct {
	Stage   Stage
	Done    int
	Total   int
	Message string
}

// ProgressObserver receives progress events. Implementations must be safe
// for concurrent use.
type ProgressObserver interface {
	Progress(event ProgressEvent)
}

// ProgressFunc adapts a function to ProgressObserver.
type ProgressFunc func(event ProgressEvent)

// Progress calls f(event).
func (f ProgressFunc) Progress(event ProgressEvent) {
	f(event)
}
