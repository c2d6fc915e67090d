package driven

import (
	"context"

	"github.com/custodia-labs/chromasync/internal/core/domain"
)

// EmbeddingService generates vector embeddings from text.
//
// Implementations may include:
//   - Ollama (all-minilm, nomic-embed-text)
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - The deterministic hash embedder for offline runs
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	// The result is parallel to texts. Failures should be *domain.EmbeddingError
	// so the caller can decide whether a smaller batch is worth trying.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size, or 0 when not yet known.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// DeviceSelector is implemented by embedding services that can move
// inference between an accelerator and the CPU.
type DeviceSelector interface {
	// SetDevice switches the device used by subsequent calls.
	SetDevice(device domain.Device) error

	// Device returns the device currently in use.
	Device() domain.Device
}

// EmbeddingFactory creates an embedding service from settings.
type EmbeddingFactory func(ctx context.Context, settings domain.EmbeddingSettings) (EmbeddingService, error)
