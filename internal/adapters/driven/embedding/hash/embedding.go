// Package hash provides a deterministic, offline embedding service.
//
// Vectors are built by feature hashing the character trigrams of the text
// and normalising to unit length. Similar strings get similar vectors, which
// is enough for smoke tests and air-gapped runs. A failure hook lets tests
// simulate out-of-memory and device errors.
package hash

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interfaces.
var (
	_ driven.EmbeddingService = (*EmbeddingService)(nil)
	_ driven.DeviceSelector   = (*EmbeddingService)(nil)
)

// Default configuration values.
const (
	DefaultDimensions = 384
	DefaultModel      = "hash-trigram"
)

// FailFunc decides whether a call fails. It sees the batch and the device in
// use; a nil return lets the call succeed.
type FailFunc func(texts []string, device domain.Device) error

// Config holds configuration for the hash embedding service.
type Config struct {
	// Model is reported by ModelName (default: hash-trigram).
	Model string

	// Dimensions is the vector size (default: 384).
	Dimensions int

	// FailWhen injects failures.
	FailWhen FailFunc
}

// EmbeddingService generates trigram feature-hash embeddings.
type EmbeddingService struct {
	model      string
	dimensions int

	mu       sync.Mutex
	device   domain.Device
	failWhen FailFunc
	calls    int
	batches  []int
	closed   bool
}

// NewEmbeddingService creates a hash embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &EmbeddingService{
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		device:     domain.DeviceAuto,
		failWhen:   cfg.FailWhen,
	}
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts. Injected failures are returned as retryable
// *domain.EmbeddingError unless the hook already returned one.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	s.calls++
	s.batches = append(s.batches, len(texts))
	device, failWhen, closed := s.device, s.failWhen, s.closed
	s.mu.Unlock()

	if closed {
		return nil, &domain.EmbeddingError{BatchSize: len(texts), Device: device, Err: fmt.Errorf("hash: service closed")}
	}
	if failWhen != nil {
		if err := failWhen(texts, device); err != nil {
			if _, ok := err.(*domain.EmbeddingError); ok {
				return nil, err
			}
			return nil, &domain.EmbeddingError{BatchSize: len(texts), Device: device, Retryable: true, Err: err}
		}
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = s.vector(text)
	}
	return out, nil
}

// vector hashes each trigram of the lower-cased, space-padded text into a
// signed bucket and normalises the result.
func (s *EmbeddingService) vector(text string) []float32 {
	vec := make([]float64, s.dimensions)
	runes := []rune(" " + strings.ToLower(text) + " ")

	h := fnv.New64a()
	for i := 0; i+3 <= len(runes); i++ {
		h.Reset()
		_, _ = h.Write([]byte(string(runes[i : i+3])))
		sum := h.Sum64()
		bucket := int(sum % uint64(s.dimensions))
		if sum&(1<<63) != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, s.dimensions)
	for i, v := range vec {
		if norm > 0 {
			out[i] = float32(v / norm)
		}
	}
	return out
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the configured model name.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping always succeeds while the service is open.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("hash: service closed")
	}
	return ctx.Err()
}

// SetDevice records the device; the hash embedder runs anywhere.
func (s *EmbeddingService) SetDevice(device domain.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.device = device
	return nil
}

// Device returns the device currently in use.
func (s *EmbeddingService) Device() domain.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// SetFailWhen replaces the failure hook.
func (s *EmbeddingService) SetFailWhen(fn FailFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWhen = fn
}

// Calls returns how many EmbedBatch calls were made.
func (s *EmbeddingService) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// BatchSizes returns the size of every EmbedBatch call in call order.
func (s *EmbeddingService) BatchSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.batches...)
}

// Closed reports whether Close has been called.
func (s *EmbeddingService) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
