package postprocessors

import (
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
	"github.com/custodia-labs/chromasync/internal/postprocessors/chunker"
	"github.com/custodia-labs/chromasync/internal/postprocessors/fingerprint"
)

// Processor names.
const (
	ChunkerName     = "chunker"
	FingerprintName = "fingerprint"
)

// RegisterDefaults registers the built-in processors.
func RegisterDefaults(r *Registry) {
	r.Register(ChunkerName, buildChunker)
	r.Register(FingerprintName, func(map[string]any) (driven.PostProcessor, error) {
		return fingerprint.New(), nil
	})
}

// NewChunkPipeline builds the chunker followed by the fingerprinter.
func NewChunkPipeline(chunkSize, overlap int) (*Pipeline, error) {
	r := NewRegistry()
	RegisterDefaults(r)
	return r.Pipeline(
		Stage{Name: ChunkerName, Options: map[string]any{
			"chunk_size": chunkSize,
			"overlap":    overlap,
		}},
		Stage{Name: FingerprintName},
	)
}

// PipelineFactory has the driven.PipelineFactory signature.
func PipelineFactory(chunkSize, overlap int) (driven.PostProcessorPipeline, error) {
	return NewChunkPipeline(chunkSize, overlap)
}

// buildChunker reads chunk_size, overlap and structure_aware (default true).
func buildChunker(opts map[string]any) (driven.PostProcessor, error) {
	var chunkOpts []chunker.Option
	if v, ok := opts["structure_aware"].(bool); ok {
		chunkOpts = append(chunkOpts, chunker.WithStructure(v))
	}
	p, err := chunker.New(intOption(opts, "chunk_size"), intOption(opts, "overlap"), chunkOpts...)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// intOption reads an int that may have been decoded as int64 or float64.
func intOption(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
