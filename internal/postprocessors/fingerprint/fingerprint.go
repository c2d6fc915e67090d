// Package fingerprint assigns content-addressed identifiers to chunks.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// ID returns the fingerprint of a chunk: hex SHA-256 over the document path,
// the decimal sequence index and the chunk text, separated by NUL bytes.
func ID(path string, sequenceIndex int, text string) string {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(sequenceIndex)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash returns the hex SHA-256 of text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Processor fills in ID and ContentHash on every chunk.
type Processor struct{}

// New creates a fingerprint processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "fingerprint"
}

// Process assigns identifiers in place and returns the chunks.
func (p *Processor) Process(_ context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}
	for i := range chunks {
		path := chunks[i].Path
		if path == "" {
			path = doc.Path
			chunks[i].Path = path
		}
		chunks[i].ID = ID(path, chunks[i].SequenceIndex, chunks[i].Text)
		chunks[i].ContentHash = ContentHash(chunks[i].Text)
	}
	return chunks, nil
}
