package domain

import "time"

// Manifest records how a local collection was built so later runs can
// detect a model or dimensionality change.
type Manifest struct {
	Collection              string    `toml:"collection"`
	ModelName               string    `toml:"model_name"`
	EmbeddingDimensionality int       `toml:"embedding_dimensionality"`
	ChunkSize               int       `toml:"chunk_size"`
	ChunkOverlap            int       `toml:"chunk_overlap"`
	RecordCount             int       `toml:"record_count"`
	SourceArchive           string    `toml:"source_archive"`
	LastRunID               string    `toml:"last_run_id"`
	UpdatedAt               time.Time `toml:"updated_at"`
}

// Compatible reports whether vectors built under m can be reused by a run
// with the given model and dimensionality.
func (m *Manifest) Compatible(model string, dims int) bool {
	if m == nil {
		return true
	}
	return m.ModelName == model && m.EmbeddingDimensionality == dims
}

// CollectionInfo describes a remote collection.
type CollectionInfo struct {
	Name     string
	ID       string
	Metadata map[string]any
}

// Model returns the model_name tag, if any.
func (c *CollectionInfo) Model() string {
	if c == nil || c.Metadata == nil {
		return ""
	}
	s, _ := c.Metadata[MetaModel].(string)
	return s
}

// Dimensions returns the embedding_dimensionality tag, or 0 if absent.
// JSON decoding yields float64; TOML and literals yield integers.
func (c *CollectionInfo) Dimensions() int {
	if c == nil || c.Metadata == nil {
		return 0
	}
	switch v := c.Metadata[MetaDimensions].(type) {
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

// LocalEntry is the sync-relevant view of one local record.
type LocalEntry struct {
	Hash    string
	Model   string
	Archive string
}

// RemoteEntry is the sync-relevant view of one remote record.
type RemoteEntry struct {
	Hash    string
	Model   string
	Archive string
}
