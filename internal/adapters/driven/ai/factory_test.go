package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/chromasync/internal/core/domain"
)

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name      string
		settings  domain.EmbeddingSettings
		wantModel string
		wantDims  int
		wantErr   error
	}{
		{
			name:      "ollama with known model",
			settings:  domain.EmbeddingSettings{Provider: domain.ProviderOllama, Model: "all-minilm"},
			wantModel: "all-minilm",
			wantDims:  384,
		},
		{
			name:      "ollama with unknown model learns dimensions later",
			settings:  domain.EmbeddingSettings{Provider: domain.ProviderOllama, Model: "custom-embed"},
			wantModel: "custom-embed",
			wantDims:  0,
		},
		{
			name:      "openai",
			settings:  domain.EmbeddingSettings{Provider: domain.ProviderOpenAI, APIKey: "sk-test", Model: "text-embedding-3-large"},
			wantModel: "text-embedding-3-large",
			wantDims:  3072,
		},
		{
			name:      "hash",
			settings:  domain.EmbeddingSettings{Provider: domain.ProviderHash, Model: "all-minilm", Dimensions: 32},
			wantModel: "hash:all-minilm",
			wantDims:  32,
		},
		{
			name:     "unknown provider",
			settings: domain.EmbeddingSettings{Provider: "bert"},
			wantErr:  domain.ErrUnsupportedType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantModel, svc.ModelName())
			assert.Equal(t, tt.wantDims, svc.Dimensions())
		})
	}
}

func TestCreateEmbeddingService_OpenAIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := CreateEmbeddingService(domain.EmbeddingSettings{Provider: domain.ProviderOpenAI})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	t.Setenv("OPENAI_API_KEY", "sk-env")
	_, err = CreateEmbeddingService(domain.EmbeddingSettings{Provider: domain.ProviderOpenAI})
	assert.NoError(t, err)
}

func TestCreateAndValidateEmbeddingService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	svc, err := CreateAndValidateEmbeddingService(context.Background(), domain.EmbeddingSettings{
		Provider: domain.ProviderOllama,
		BaseURL:  srv.URL,
		Model:    "all-minilm",
	})
	require.NoError(t, err)
	assert.NoError(t, svc.Close())

	_, err = CreateAndValidateEmbeddingService(context.Background(), domain.EmbeddingSettings{
		Provider: domain.ProviderOllama,
		BaseURL:  "http://127.0.0.1:1",
		Model:    "all-minilm",
	})
	assert.ErrorIs(t, err, domain.ErrEmbedding)
}

func TestOllamaHost(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	assert.Empty(t, ollamaHost())

	t.Setenv("OLLAMA_HOST", "10.0.0.5:11434")
	assert.Equal(t, "http://10.0.0.5:11434", ollamaHost())

	t.Setenv("OLLAMA_HOST", "https://ollama.internal")
	assert.Equal(t, "https://ollama.internal", ollamaHost())
}
