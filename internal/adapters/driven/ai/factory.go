// Package ai provides factory functions for creating embedding service adapters.
package ai

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	hashembed "github.com/custodia-labs/chromasync/internal/adapters/driven/embedding/hash"
	ollamaembed "github.com/custodia-labs/chromasync/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/chromasync/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// Ensure CreateAndValidateEmbeddingService satisfies the factory signature.
var _ driven.EmbeddingFactory = CreateAndValidateEmbeddingService

// knownDimensions lists the vector sizes of common embedding models.
// Unknown models learn their size from the first response.
var knownDimensions = map[string]int{
	"all-minilm":             384,
	"all-minilm:l6-v2":       384,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"snowflake-arctic-embed": 1024,
	"bge-m3":                 1024,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// KnownDimensions returns the vector size of a known model, or 0.
func KnownDimensions(model string) int {
	return knownDimensions[model]
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Every failure wraps domain.ErrEmbedding.
func CreateAndValidateEmbeddingService(ctx context.Context, settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: %s service unreachable: %w", domain.ErrEmbedding, settings.Provider, err)
	}

	return svc, nil
}

// CreateEmbeddingService creates the embedding service selected by settings.
func CreateEmbeddingService(settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	switch settings.Provider {
	case domain.ProviderOllama:
		return createOllamaEmbedding(settings), nil

	case domain.ProviderOpenAI:
		return createOpenAIEmbedding(settings)

	case domain.ProviderHash:
		return hashembed.NewEmbeddingService(hashembed.Config{
			Model:      "hash:" + settings.Model,
			Dimensions: settings.Dimensions,
		}), nil

	default:
		return nil, fmt.Errorf("%w: embedding provider %q", domain.ErrUnsupportedType, settings.Provider)
	}
}

// createOllamaEmbedding creates an Ollama embedding service.
// OLLAMA_HOST is honoured when no base URL is configured.
func createOllamaEmbedding(settings domain.EmbeddingSettings) driven.EmbeddingService {
	baseURL := settings.BaseURL
	if baseURL == "" {
		baseURL = ollamaHost()
	}

	dimensions := settings.Dimensions
	if dimensions == 0 {
		dimensions = KnownDimensions(settings.Model)
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    baseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
// OPENAI_API_KEY is honoured when no key is configured.
func createOpenAIEmbedding(settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	apiKey := settings.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     apiKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: settings.Dimensions,

		RequestsPerMinute: settings.RequestsPerMinute,
	})
}

// ollamaHost reads OLLAMA_HOST, adding a scheme when it is missing.
func ollamaHost() string {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		return ""
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host
}
