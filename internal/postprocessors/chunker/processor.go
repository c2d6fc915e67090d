// Package chunker splits documents into overlapping character windows.
//
// Markdown, code and text documents end their chunks on headings,
// declarations, paragraphs or sentences where one is close enough to the
// window edge. Everything else uses the plain sliding window.
package chunker

import (
	"context"
	"strings"

	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// Processor splits document content into chunks.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize      int
	overlap        int
	structureAware bool
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithStructure toggles boundary snapping. Disabled, every document is cut
// with the plain sliding window.
func WithStructure(enabled bool) Option {
	return func(p *Processor) {
		p.structureAware = enabled
	}
}

// New creates a chunker. It fails with domain.ErrConfiguration unless
// 0 <= overlap < size.
func New(size, overlap int, opts ...Option) (*Processor, error) {
	if err := domain.ValidateChunking(size, overlap); err != nil {
		return nil, err
	}

	p := &Processor{
		chunkSize:      size,
		overlap:        overlap,
		structureAware: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the configured window size in characters.
func (p *Processor) ChunkSize() int {
	return p.chunkSize
}

// Overlap returns the configured overlap in characters.
func (p *Processor) Overlap() int {
	return p.overlap
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}
	return p.Chunk(doc), nil
}

// Chunk splits doc. It is a pure function of the content, type hint,
// language, size and overlap. Empty and whitespace-only documents yield no chunks.
func (p *Processor) Chunk(doc *domain.Document) []domain.Chunk {
	if strings.TrimSpace(doc.Content) == "" {
		return nil
	}

	runes := []rune(doc.Content)

	var tiers []uint8
	if p.structureAware {
		tiers = boundaries(doc)
	}

	spans := window(len(runes), p.chunkSize, p.overlap, tiers)
	chunks := make([]domain.Chunk, 0, len(spans))
	for i, s := range spans {
		chunks = append(chunks, domain.Chunk{
			Path:          doc.Path,
			Text:          string(runes[s.start:s.end]),
			StartOffset:   s.start,
			EndOffset:     s.end,
			SequenceIndex: i,
		})
	}
	return chunks
}
