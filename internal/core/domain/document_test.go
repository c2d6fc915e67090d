package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestChunk_Len tests the character length of a span
func TestChunk_Len(t *testing.T) {
	c := Chunk{StartOffset: 900, EndOffset: 1900}
	assert.Equal(t, 1000, c.Len())
}

// TestNewChunkRecord tests record construction from a fingerprinted chunk
func TestNewChunkRecord(t *testing.T) {
	doc := &Document{
		Path:     "src/main.go",
		Content:  "package main",
		TypeHint: TypeCode,
		Language: "go",
		Archive:  "repo.zip",
	}
	chunk := Chunk{
		ID:            "abc",
		Path:          doc.Path,
		Text:          "package main",
		StartOffset:   0,
		EndOffset:     12,
		SequenceIndex: 0,
		ContentHash:   "def",
	}

	rec := NewChunkRecord(doc, chunk, "all-minilm")

	assert.Equal(t, "abc", rec.ID)
	assert.Equal(t, "package main", rec.Text)
	assert.Equal(t, "def", rec.ContentHash)
	assert.Equal(t, "all-minilm", rec.Model)
	assert.Nil(t, rec.Embedding)
	assert.Equal(t, "src/main.go", rec.Metadata.Path)
	assert.Equal(t, TypeCode, rec.Metadata.DocumentType)
	assert.Equal(t, "go", rec.Metadata.Language)
	assert.Equal(t, "repo.zip", rec.Metadata.Archive)
	assert.Equal(t, 12, rec.Metadata.EndOffset)
}

// TestRecordMetadata_Map tests flattening to store metadata
func TestRecordMetadata_Map(t *testing.T) {
	m := RecordMetadata{
		Path:          "docs/a.md",
		SequenceIndex: 3,
		DocumentType:  TypeMarkdown,
		Archive:       "docs.zip",
		StartOffset:   10,
		EndOffset:     20,
	}

	out := m.Map()

	assert.Equal(t, "docs/a.md", out[MetaPath])
	assert.Equal(t, 3, out[MetaSequenceIndex])
	assert.Equal(t, "markdown", out[MetaDocumentType])
	assert.Equal(t, "docs.zip", out[MetaArchive])
	assert.Equal(t, 10, out[MetaStartOffset])
	assert.Equal(t, 20, out[MetaEndOffset])
	_, hasLang := out[MetaLanguage]
	assert.False(t, hasLang, "language omitted when empty")

	m.Language = "python"
	require.Contains(t, m.Map(), MetaLanguage)
	assert.Equal(t, "python", m.Map()[MetaLanguage])
}

// TestTypeDetector_Detect tests extension based type detection
func TestTypeDetector_Detect(t *testing.T) {
	d := NewTypeDetector()

	tests := []struct {
		path     string
		wantType DocumentType
		wantLang string
		wantOK   bool
	}{
		{"README.md", TypeMarkdown, "", true},
		{"docs/Guide.MARKDOWN", TypeMarkdown, "", true},
		{"notes.txt", TypeText, "", true},
		{"config/app.yaml", TypeText, "", true},
		{"main.py", TypeCode, "python", true},
		{"lib/a.rs", TypeCode, "rust", true},
		{"web/app.tsx", TypeCode, "javascript", true},
		{"include/x.hpp", TypeCode, "c_cpp", true},
		{"cmd/main.go", TypeCode, "go", true},
		{"image.png", "", "", false},
		{"Makefile", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			gotType, gotLang, ok := d.Detect(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantType, gotType)
			assert.Equal(t, tt.wantLang, gotLang)
		})
	}
}

// TestTypeDetector_ExtraExtensions tests user supplied extensions
func TestTypeDetector_ExtraExtensions(t *testing.T) {
	d := NewTypeDetector("adoc", ".TEX", " ")

	docType, _, ok := d.Detect("book/ch1.adoc")
	require.True(t, ok)
	assert.Equal(t, TypeUnknown, docType)

	_, _, ok = d.Detect("paper.tex")
	assert.True(t, ok)

	exts := d.Extensions()
	assert.Contains(t, exts, ".adoc")
	assert.Contains(t, exts, ".tex")
	assert.Contains(t, exts, ".md")
	assert.IsIncreasing(t, exts)
}

// TestDocumentType_IsValid tests type validation
func TestDocumentType_IsValid(t *testing.T) {
	assert.True(t, TypeMarkdown.IsValid())
	assert.True(t, TypeUnknown.IsValid())
	assert.False(t, DocumentType("pdf").IsValid())
	assert.Equal(t, "code", TypeCode.String())
}
