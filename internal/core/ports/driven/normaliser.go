package driven

import (
	"context"

	"github.com/custodia-labs/chromasync/internal/core/domain"
)

// Normaliser decodes archive entries to text. It never chunks.
type Normaliser interface {
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult is a decoded document and how it was decoded.
type NormaliseResult struct {
	Document domain.Document

	// Encoding is the detected source encoding, e.g. "utf-8" or "utf-16le".
	Encoding string

	// Lossy is set when invalid byte sequences were dropped.
	Lossy bool
}
