package driven

import (
	"context"

	"github.com/custodia-labs/chromasync/internal/core/domain"
)

// PostProcessor is one stage of chunk production. The first stage receives
// nil and creates chunks from doc; later stages rewrite what they are given,
// e.g. assigning ids and content hashes.
type PostProcessor interface {
	Name() string
	Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline turns a document into its final chunks.
type PostProcessorPipeline interface {
	Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)
}

// PipelineFactory builds the chunking pipeline for one run. Invalid sizes
// fail with domain.ErrConfiguration.
type PipelineFactory func(chunkSize, overlap int) (PostProcessorPipeline, error)
