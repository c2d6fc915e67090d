package domain

// RawDocument is a named byte stream read from an archive entry.
// It is opaque until a normaliser decodes it.
type RawDocument struct {
	// Path is the entry path relative to the archive root, slash separated.
	Path string

	// Content is the raw entry bytes.
	Content []byte

	// Type is the document type detected from the path extension.
	Type DocumentType

	// Language is the programming language for code documents.
	Language string

	// Archive is the base name of the archive the entry came from.
	Archive string
}

// Document is a logical unit extracted from the archive.
// It is immutable and discarded once chunked.
type Document struct {
	// Path is unique within the archive.
	Path string

	// Content is the decoded text.
	Content string

	// TypeHint selects the chunking strategy.
	TypeHint DocumentType

	// Language is the programming language for code documents.
	Language string

	// Archive is the base name of the source archive.
	Archive string
}

// Chunk is a contiguous span of a Document's content.
// Offsets are measured in characters (Unicode code points), end exclusive.
type Chunk struct {
	// ID is the fingerprint, assigned by the fingerprint processor.
	ID string

	// Path is the parent document path.
	Path string

	// Text is the chunk content.
	Text string

	// StartOffset is the first character of the span.
	StartOffset int

	// EndOffset is one past the last character of the span.
	EndOffset int

	// SequenceIndex is the 0-based position within the parent document.
	SequenceIndex int

	// ContentHash is the hash of Text, assigned by the fingerprint processor.
	ContentHash string

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any
}

// Len returns the span length in characters.
func (c Chunk) Len() int {
	return c.EndOffset - c.StartOffset
}

// ChunkRecord is the persisted unit of a Collection.
type ChunkRecord struct {
	// ID is the chunk fingerprint.
	ID string

	// Text is the chunk content.
	Text string

	// Embedding has the collection's dimensionality.
	Embedding []float32

	// ContentHash is the hash of Text.
	ContentHash string

	// Model names the embedding model that produced Embedding.
	Model string

	// Metadata holds path, sequence index, document type and source archive.
	Metadata RecordMetadata
}

// RecordMetadata is the fixed metadata attached to every ChunkRecord.
type RecordMetadata struct {
	Path          string
	SequenceIndex int
	DocumentType  DocumentType
	Language      string
	Archive       string
	StartOffset   int
	EndOffset     int
}

// Map flattens the metadata into the key-value form sent to vector stores.
func (m RecordMetadata) Map() map[string]any {
	out := map[string]any{
		MetaPath:          m.Path,
		MetaSequenceIndex: m.SequenceIndex,
		MetaDocumentType:  string(m.DocumentType),
		MetaArchive:       m.Archive,
		MetaStartOffset:   m.StartOffset,
		MetaEndOffset:     m.EndOffset,
	}
	if m.Language != "" {
		out[MetaLanguage] = m.Language
	}
	return out
}

// Metadata keys shared by the local and remote stores.
const (
	MetaPath          = "source_file"
	MetaSequenceIndex = "sequence_index"
	MetaDocumentType  = "chunk_type"
	MetaLanguage      = "language"
	MetaArchive       = "source_archive"
	MetaStartOffset   = "start_offset"
	MetaEndOffset     = "end_offset"
	MetaContentHash   = "content_hash"
	MetaModel         = "model_name"
	MetaDimensions    = "embedding_dimensionality"
	MetaChunkSize     = "chunk_size"
	MetaChunkOverlap  = "chunk_overlap"
)

// NewChunkRecord builds a record from a fingerprinted chunk of doc.
// The embedding is attached later.
func NewChunkRecord(doc *Document, chunk Chunk, model string) ChunkRecord {
	return ChunkRecord{
		ID:          chunk.ID,
		Text:        chunk.Text,
		ContentHash: chunk.ContentHash,
		Model:       model,
		Metadata: RecordMetadata{
			Path:          doc.Path,
			SequenceIndex: chunk.SequenceIndex,
			DocumentType:  doc.TypeHint,
			Language:      doc.Language,
			Archive:       doc.Archive,
			StartOffset:   chunk.StartOffset,
			EndOffset:     chunk.EndOffset,
		},
	}
}
