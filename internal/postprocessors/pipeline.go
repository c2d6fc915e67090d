// Package postprocessors turns normalised documents into fingerprinted chunks.
package postprocessors

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
)

var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline runs processors in order. The first one creates chunks from the
// document, the rest rewrite them.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline creates a pipeline running processors in the given order.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Process runs doc through every processor. Once a stage yields no chunks
// the rest are skipped.
func (p *Pipeline) Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("pipeline: %w: document is nil", domain.ErrInvalidInput)
	}

	var chunks []domain.Chunk
	for i, processor := range p.processors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		chunks, err = processor.Process(ctx, doc, chunks)
		if err != nil {
			return nil, fmt.Errorf("processor %s on %s: %w", processor.Name(), doc.Path, err)
		}
		if i == 0 && len(chunks) == 0 {
			return nil, nil
		}
	}
	return chunks, nil
}

// Len returns the number of processors.
func (p *Pipeline) Len() int {
	return len(p.processors)
}

// String lists the processors, e.g. "chunker -> fingerprint".
func (p *Pipeline) String() string {
	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return strings.Join(names, " -> ")
}
