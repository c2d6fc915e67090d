package domain

import (
	"path"
	"sort"
	"strings"
)

// DocumentType is the type hint derived from a path extension.
// It selects the chunking strategy.
type DocumentType string

// Known document types.
const (
	// TypeMarkdown respects heading and paragraph boundaries.
	TypeMarkdown DocumentType = "markdown"

	// TypeText respects paragraph and sentence boundaries.
	TypeText DocumentType = "text"

	// TypeCode respects declaration and blank-line boundaries.
	TypeCode DocumentType = "code"

	// TypeUnknown is accepted but chunked with the plain sliding window.
	TypeUnknown DocumentType = "unknown"
)

// IsValid returns true if the type is recognised.
func (t DocumentType) IsValid() bool {
	switch t {
	case TypeMarkdown, TypeText, TypeCode, TypeUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t DocumentType) String() string {
	return string(t)
}

var markdownExtensions = map[string]struct{}{
	".md": {}, ".mdx": {}, ".markdown": {},
}

var textExtensions = map[string]struct{}{
	".txt": {}, ".csv": {}, ".log": {}, ".conf": {}, ".ini": {}, ".cfg": {},
	".yaml": {}, ".yml": {}, ".json": {}, ".toml": {}, ".rst": {}, ".xml": {},
	".html": {}, ".htm": {},
}

// codeLanguages maps code extensions to the language whose declaration
// patterns the code chunker uses.
var codeLanguages = map[string]string{
	".py":    "python",
	".java":  "java",
	".kt":    "java",
	".scala": "java",
	".c":     "c_cpp",
	".cpp":   "c_cpp",
	".cc":    "c_cpp",
	".h":     "c_cpp",
	".hpp":   "c_cpp",
	".cs":    "c_cpp",
	".swift": "c_cpp",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "javascript",
	".tsx":   "javascript",
	".go":    "go",
	".rs":    "rust",
	".rb":    "generic",
	".php":   "generic",
	".sh":    "generic",
	".sql":   "generic",
}

// TypeDetector decides which archive entries are supported and how they are chunked.
type TypeDetector struct {
	extra map[string]struct{}
}

// NewTypeDetector creates a detector with the built-in allow-list plus
// extra extensions, which are accepted as TypeUnknown.
func NewTypeDetector(extraExtensions ...string) *TypeDetector {
	d := &TypeDetector{extra: make(map[string]struct{}, len(extraExtensions))}
	for _, ext := range extraExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		d.extra[ext] = struct{}{}
	}
	return d
}

// Detect returns the type hint and language for p.
// ok is false when the entry is not on the allow-list and must be skipped.
func (d *TypeDetector) Detect(p string) (docType DocumentType, language string, ok bool) {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return "", "", false
	}
	if _, found := markdownExtensions[ext]; found {
		return TypeMarkdown, "", true
	}
	if _, found := textExtensions[ext]; found {
		return TypeText, "", true
	}
	if lang, found := codeLanguages[ext]; found {
		return TypeCode, lang, true
	}
	if d != nil {
		if _, found := d.extra[ext]; found {
			return TypeUnknown, "", true
		}
	}
	return "", "", false
}

// Extensions returns every accepted extension, sorted.
func (d *TypeDetector) Extensions() []string {
	exts := make([]string, 0, len(markdownExtensions)+len(textExtensions)+len(codeLanguages))
	for ext := range markdownExtensions {
		exts = append(exts, ext)
	}
	for ext := range textExtensions {
		exts = append(exts, ext)
	}
	for ext := range codeLanguages {
		exts = append(exts, ext)
	}
	if d != nil {
		for ext := range d.extra {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}
