package plaintext

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
)

var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser decodes text entries of every supported type.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Normalise decodes raw bytes as UTF-8, or UTF-16 when a byte order mark
// says so. A UTF-8 byte order mark is removed and invalid sequences are dropped.
// Chunking is handled by the PostProcessor pipeline.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	decoded, err := decode(raw.Content)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", raw.Path, err)
	}
	content := strings.ToValidUTF8(decoded, "")

	typeHint := raw.Type
	if !typeHint.IsValid() {
		typeHint = domain.TypeUnknown
	}

	return &driven.NormaliseResult{
		Document: domain.Document{
			Path:     raw.Path,
			Content:  content,
			TypeHint: typeHint,
			Language: raw.Language,
			Archive:  raw.Archive,
		},
		Encoding: Detect(raw.Content),
		Lossy:    !utf8.ValidString(decoded),
	}, nil
}

// Decode converts raw bytes to valid UTF-8 text.
func Decode(b []byte) (string, error) {
	s, err := decode(b)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(s, ""), nil
}

// decode applies the byte order mark, leaving invalid sequences in place.
func decode(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	decoded, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), b)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

var boms = []struct {
	mark     []byte
	encoding string
}{
	{[]byte{0xEF, 0xBB, 0xBF}, "utf-8"},
	{[]byte{0xFF, 0xFE}, "utf-16le"},
	{[]byte{0xFE, 0xFF}, "utf-16be"},
}

// Detect names the encoding Decode will apply to b.
func Detect(b []byte) string {
	for _, bom := range boms {
		if bytes.HasPrefix(b, bom.mark) {
			return bom.encoding
		}
	}
	return "utf-8"
}
