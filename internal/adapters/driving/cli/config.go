package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
)

// remoteFlags address the remote Chroma server.
type remoteFlags struct {
	host      string
	port      int
	scheme    string
	tenant    string
	database  string
	apiKey    string
	rateLimit float64
}

// settingsFlags are the per-run flags of index, plan, watch and mcp serve.
type settingsFlags struct {
	remote remoteFlags

	name         string
	chunkSize    int
	chunkOverlap int
	provider     string
	model        string
	baseURL      string
	outputDir    string
	extraExt     []string

	resetRemote bool
	resetAll    bool
	cpu         bool
	noSync      bool

	embedBatch   int
	embedWorkers int
	syncBatch    int
}

func addRemoteFlags(cmd *cobra.Command, f *remoteFlags) {
	fs := cmd.Flags()
	fs.StringVar(&f.host, "remote-host", domain.DefaultRemoteHost, "Chroma server host")
	fs.IntVar(&f.port, "remote-port", domain.DefaultRemotePort, "Chroma server port")
	fs.StringVar(&f.scheme, "remote-scheme", domain.DefaultRemoteScheme, "http or https")
	fs.StringVar(&f.tenant, "remote-tenant", domain.DefaultTenant, "Chroma tenant")
	fs.StringVar(&f.database, "remote-database", domain.DefaultDatabase, "Chroma database")
	fs.StringVar(&f.apiKey, "api-key", "", "Chroma token sent as x-chroma-token (default $CHROMA_API_KEY)")
	fs.Float64Var(&f.rateLimit, "rate-limit", 0, "maximum remote requests per second (0 = unlimited)")
}

func addSettingsFlags(cmd *cobra.Command, f *settingsFlags) {
	addRemoteFlags(cmd, &f.remote)

	fs := cmd.Flags()
	fs.StringVarP(&f.name, "name", "n", "", "collection name (default: archive name)")
	fs.IntVarP(&f.chunkSize, "chunk-size", "s", domain.DefaultChunkSize, "chunk size in characters")
	fs.IntVarP(&f.chunkOverlap, "chunk-overlap", "o", domain.DefaultChunkOverlap, "overlap between chunks in characters")
	fs.StringVar(&f.provider, "provider", string(domain.ProviderOllama), "embedding provider: ollama, openai or hash")
	fs.StringVarP(&f.model, "model", "m", domain.DefaultModel, "embedding model")
	fs.StringVar(&f.baseURL, "embedding-url", "", "embedding server URL (default per provider)")
	fs.StringVar(&f.outputDir, "output-dir", ".", "directory holding local collections")
	fs.StringSliceVar(&f.extraExt, "ext", nil, "extra file extensions to index, e.g. .tex,.adoc")
	fs.BoolVarP(&f.resetRemote, "reset-remote", "r", false, "drop and recreate the remote collection")
	fs.BoolVarP(&f.resetAll, "reset-all", "R", false, "drop every remote collection first")
	fs.BoolVarP(&f.cpu, "cpu", "c", false, "force CPU embedding")
	fs.BoolVar(&f.noSync, "no-sync", false, "only build the local collection")
	fs.IntVar(&f.embedBatch, "embed-batch", domain.DefaultEmbedBatchSize, "texts per embedding request")
	fs.IntVar(&f.embedWorkers, "embed-workers", domain.DefaultEmbedWorkers, "concurrent embedding requests")
	fs.IntVar(&f.syncBatch, "sync-batch", domain.DefaultSyncBatchSize, "records per remote request")
}

// defaultSettings returns built-in defaults overlaid with the config file.
func defaultSettings(store driven.ConfigStore) domain.RunSettings {
	s := domain.DefaultRunSettings()
	s.OutputDir = "."
	if store == nil {
		return s
	}

	setString(store, "name", &s.Name)
	setInt(store, "chunk_size", &s.ChunkSize)
	setInt(store, "chunk_overlap", &s.ChunkOverlap)
	setString(store, "output_dir", &s.OutputDir)
	if exts := store.GetStringSlice("extra_extensions"); exts != nil {
		s.ExtraExtensions = exts
	}
	setBool(store, "force_cpu", &s.ForceCPU)
	setInt(store, "embed_batch", &s.EmbedBatchSize)
	setInt(store, "embed_workers", &s.EmbedWorkers)
	setInt(store, "sync_batch", &s.SyncBatchSize)

	var provider string
	if setString(store, "embedding.provider", &provider) {
		s.Embedding.Provider = domain.EmbeddingProvider(provider)
	}
	setString(store, "embedding.model", &s.Embedding.Model)
	setString(store, "embedding.base_url", &s.Embedding.BaseURL)
	setString(store, "embedding.api_key", &s.Embedding.APIKey)
	setInt(store, "embedding.dimensions", &s.Embedding.Dimensions)
	setInt(store, "embedding.requests_per_minute", &s.Embedding.RequestsPerMinute)

	setString(store, "remote.host", &s.Remote.Host)
	setInt(store, "remote.port", &s.Remote.Port)
	setString(store, "remote.scheme", &s.Remote.Scheme)
	setString(store, "remote.tenant", &s.Remote.Tenant)
	setString(store, "remote.database", &s.Remote.Database)
	setString(store, "remote.api_key", &s.Remote.APIKey)
	if _, ok := store.Get("remote.rate_limit"); ok {
		s.Remote.RateLimit = store.GetFloat("remote.rate_limit")
	}
	return s
}

// resolveSettings layers explicitly set flags over defaultSettings.
func resolveSettings(cmd *cobra.Command, f *settingsFlags) domain.RunSettings {
	s := defaultSettings(configStore)
	applyRemoteFlags(cmd, &f.remote, &s.Remote)

	fs := cmd.Flags()
	if fs.Changed("name") {
		s.Name = f.name
	}
	if fs.Changed("chunk-size") {
		s.ChunkSize = f.chunkSize
	}
	if fs.Changed("chunk-overlap") {
		s.ChunkOverlap = f.chunkOverlap
	}
	if fs.Changed("provider") {
		s.Embedding.Provider = domain.EmbeddingProvider(f.provider)
	}
	if fs.Changed("model") {
		s.Embedding.Model = f.model
	}
	if fs.Changed("embedding-url") {
		s.Embedding.BaseURL = f.baseURL
	}
	if fs.Changed("output-dir") {
		s.OutputDir = f.outputDir
	}
	if fs.Changed("ext") {
		s.ExtraExtensions = f.extraExt
	}
	if fs.Changed("embed-batch") {
		s.EmbedBatchSize = f.embedBatch
	}
	if fs.Changed("embed-workers") {
		s.EmbedWorkers = f.embedWorkers
	}
	if fs.Changed("sync-batch") {
		s.SyncBatchSize = f.syncBatch
	}
	s.ForceCPU = s.ForceCPU || f.cpu
	s.ResetRemote = f.resetRemote
	s.ResetAll = f.resetAll
	s.NoSync = f.noSync
	return s
}

// resolveRemote layers explicitly set remote flags over defaultSettings.
func resolveRemote(cmd *cobra.Command, f *remoteFlags) domain.RemoteSettings {
	s := defaultSettings(configStore)
	applyRemoteFlags(cmd, f, &s.Remote)
	return s.Remote
}

func applyRemoteFlags(cmd *cobra.Command, f *remoteFlags, r *domain.RemoteSettings) {
	fs := cmd.Flags()
	if fs.Changed("remote-host") {
		r.Host = f.host
	}
	if fs.Changed("remote-port") {
		r.Port = f.port
	}
	if fs.Changed("remote-scheme") {
		r.Scheme = f.scheme
	}
	if fs.Changed("remote-tenant") {
		r.Tenant = f.tenant
	}
	if fs.Changed("remote-database") {
		r.Database = f.database
	}
	if fs.Changed("api-key") {
		r.APIKey = f.apiKey
	}
	if fs.Changed("rate-limit") {
		r.RateLimit = f.rateLimit
	}
}

func setString(store driven.ConfigStore, key string, dst *string) bool {
	if v := store.GetString(key); v != "" {
		*dst = v
		return true
	}
	return false
}

func setInt(store driven.ConfigStore, key string, dst *int) {
	if _, ok := store.Get(key); ok {
		*dst = store.GetInt(key)
	}
}

func setBool(store driven.ConfigStore, key string, dst *bool) {
	if _, ok := store.Get(key); ok {
		*dst = store.GetBool(key)
	}
}
