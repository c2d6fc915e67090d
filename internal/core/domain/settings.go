package domain

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Default run settings.
const (
	DefaultChunkSize      = 1000
	DefaultChunkOverlap   = 100
	DefaultModel          = "all-minilm"
	DefaultRemoteHost     = "127.0.0.1"
	DefaultRemotePort     = 8080
	DefaultRemoteScheme   = "http"
	DefaultTenant         = "default_tenant"
	DefaultDatabase       = "default_database"
	DefaultEmbedBatchSize = 32
	DefaultEmbedWorkers   = 2
	DefaultSyncBatchSize  = 1000
	DefaultName           = "unnamed"
)

// EmbeddingProvider identifies an embedding backend.
type EmbeddingProvider string

// Available embedding providers.
const (
	// ProviderOllama is a local or remote Ollama instance.
	ProviderOllama EmbeddingProvider = "ollama"

	// ProviderOpenAI is the OpenAI API or a compatible server.
	ProviderOpenAI EmbeddingProvider = "openai"

	// ProviderHash is the deterministic offline embedder.
	ProviderHash EmbeddingProvider = "hash"
)

// IsValid returns true if the provider is recognised.
func (p EmbeddingProvider) IsValid() bool {
	switch p {
	case ProviderOllama, ProviderOpenAI, ProviderHash:
		return true
	default:
		return false
	}
}

// RemoteSettings addresses the remote vector store.
type RemoteSettings struct {
	Scheme   string
	Host     string
	Port     int
	Tenant   string
	Database string
	APIKey   string

	// RateLimit caps requests per second; 0 means unlimited.
	RateLimit float64
}

// URL returns the base URL of the remote server.
func (r RemoteSettings) URL() string {
	scheme := r.Scheme
	if scheme == "" {
		scheme = DefaultRemoteScheme
	}
	return fmt.Sprintf("%s://%s:%d", scheme, r.Host, r.Port)
}

// EmbeddingSettings selects the embedding backend.
type EmbeddingSettings struct {
	Provider EmbeddingProvider
	Model    string
	BaseURL  string
	APIKey   string

	// Dimensions overrides the model's native size where the backend allows it.
	Dimensions int

	// RequestsPerMinute paces hosted APIs. 0 is unlimited.
	RequestsPerMinute int
}

// RunSettings is the complete configuration of one pipeline run.
type RunSettings struct {
	// Name is the collection identifier; derived from the archive when empty.
	Name string

	ChunkSize    int
	ChunkOverlap int

	Embedding EmbeddingSettings

	// OutputDir is the local persistence root.
	OutputDir string

	Remote RemoteSettings

	// ResetRemote drops and recreates the target collection.
	ResetRemote bool

	// ResetAll drops every remote collection before syncing.
	ResetAll bool

	// ForceCPU disables accelerator use.
	ForceCPU bool

	EmbedBatchSize int
	EmbedWorkers   int
	SyncBatchSize  int

	// ExtraExtensions are accepted in addition to the built-in allow-list.
	ExtraExtensions []string

	// NoSync stops after the local collection is written.
	NoSync bool

	// DryRun computes the sync plan without mutating anything remote.
	DryRun bool
}

// DefaultRunSettings returns settings populated with defaults.
func DefaultRunSettings() RunSettings {
	return RunSettings{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Embedding: EmbeddingSettings{
			Provider: ProviderOllama,
			Model:    DefaultModel,
		},
		Remote: RemoteSettings{
			Scheme:   DefaultRemoteScheme,
			Host:     DefaultRemoteHost,
			Port:     DefaultRemotePort,
			Tenant:   DefaultTenant,
			Database: DefaultDatabase,
		},
		EmbedBatchSize: DefaultEmbedBatchSize,
		EmbedWorkers:   DefaultEmbedWorkers,
		SyncBatchSize:  DefaultSyncBatchSize,
	}
}

// collectionName follows Chroma's naming rules.
var collectionName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{1,510}[A-Za-z0-9]$`)

// ValidateChunking checks the chunk parameters alone.
func ValidateChunking(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrConfiguration, size)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: chunk_overlap must not be negative, got %d", ErrConfiguration, overlap)
	}
	if overlap >= size {
		return fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)",
			ErrConfiguration, overlap, size)
	}
	return nil
}

// Validate checks the settings before any processing begins.
func (s *RunSettings) Validate() error {
	if err := ValidateChunking(s.ChunkSize, s.ChunkOverlap); err != nil {
		return err
	}
	if s.Name != "" && !collectionName.MatchString(s.Name) {
		return fmt.Errorf("%w: invalid collection name %q (3-512 characters of [A-Za-z0-9._-], "+
			"starting and ending with an alphanumeric)", ErrConfiguration, s.Name)
	}
	if !s.Embedding.Provider.IsValid() {
		return fmt.Errorf("%w: unknown embedding provider %q", ErrConfiguration, s.Embedding.Provider)
	}
	if s.Embedding.Model == "" {
		return fmt.Errorf("%w: embedding model is required", ErrConfiguration)
	}
	if s.EmbedBatchSize <= 0 {
		return fmt.Errorf("%w: embed batch size must be positive, got %d", ErrConfiguration, s.EmbedBatchSize)
	}
	if s.EmbedWorkers <= 0 {
		return fmt.Errorf("%w: embed workers must be positive, got %d", ErrConfiguration, s.EmbedWorkers)
	}
	if s.SyncBatchSize <= 0 {
		return fmt.Errorf("%w: sync batch size must be positive, got %d", ErrConfiguration, s.SyncBatchSize)
	}
	if !s.NoSync {
		if s.Remote.Host == "" {
			return fmt.Errorf("%w: remote host is required", ErrConfiguration)
		}
		if s.Remote.Port <= 0 || s.Remote.Port > 65535 {
			return fmt.Errorf("%w: invalid remote port %d", ErrConfiguration, s.Remote.Port)
		}
		if s.Remote.RateLimit < 0 {
			return fmt.Errorf("%w: remote rate limit must not be negative", ErrConfiguration)
		}
	}
	return nil
}

// CollectionName returns the configured name, or one derived from the archive path.
func (s *RunSettings) CollectionName(archivePath string) string {
	if s.Name != "" {
		return s.Name
	}
	return NameFromArchive(archivePath)
}

// NameFromArchive derives a collection name from an archive's base filename,
// dropping every archive extension (e.g. "docs.tar.gz" -> "docs").
func NameFromArchive(archivePath string) string {
	base := filepath.Base(filepath.Clean(archivePath))
	lower := strings.ToLower(base)
	for _, ext := range []string{".tar.gz", ".tar.zst", ".tar.lz4", ".tgz", ".tzst", ".tar", ".zip"} {
		if strings.HasSuffix(lower, ext) {
			base = base[:len(base)-len(ext)]
			break
		}
	}
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, base)
	if len(base) > 512 {
		base = base[:512]
	}
	base = strings.Trim(base, "._-")
	if len(base) < 3 {
		return DefaultName
	}
	return base
}
