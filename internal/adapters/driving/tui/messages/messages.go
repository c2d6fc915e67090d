// Package messages defines Bubbletea message types for the progress view.
package messages

import (
	"github.com/custodia-labs/chromasync/internal/core/domain"
)

// Progress carries one pipeline progress event into the model.
type Progress struct {
	Event domain.ProgressEvent
}

// RunFinished is sent once when the pipeline returns.
type RunFinished struct {
	Report *domain.RunReport
	Err    error
}
