package chunker

import (
	"regexp"
	"unicode/utf8"

	"github.com/custodia-labs/chromasync/internal/core/domain"
)

// Boundary strengths. A chunk end prefers the strongest boundary in range.
const (
	tierNone uint8 = iota
	tierLine
	tierBlock
	tierSection
)

var (
	lineBreak      = regexp.MustCompile(`\n`)
	paragraphBreak = regexp.MustCompile(`\n[ \t]*\n+`)
	headingLine    = regexp.MustCompile(`(?m)^#{1,6}[ \t]+\S`)
	sentenceEnd    = regexp.MustCompile(`[.!?]["')\]]?\s+`)
)

// declarationPatterns mark the first line of a top-level construct per language.
var declarationPatterns = map[string][]*regexp.Regexp{
	"python": {
		regexp.MustCompile(`(?m)^[ \t]*(?:async[ \t]+)?(?:def|class)[ \t]+\w+`),
	},
	"java": {
		regexp.MustCompile(`(?m)^[ \t]*(?:(?:public|private|protected|static|final|abstract|sealed)[ \t]+)*(?:class|interface|enum|record)[ \t]+\w+`),
		regexp.MustCompile(`(?m)^[ \t]*@\w+`),
		regexp.MustCompile(`(?m)^[ \t]*(?:public|private|protected)[ \t]+(?:static[ \t]+)?[\w<>\[\], ]+[ \t]+\w+[ \t]*\(`),
	},
	"c_cpp": {
		regexp.MustCompile(`(?m)^[ \t]*(?:typedef[ \t]+)?(?:struct|class|interface|enum|namespace|union)[ \t]+\w+`),
		regexp.MustCompile(`(?m)^[ \t]*#[ \t]*include`),
		regexp.MustCompile(`(?m)^[A-Za-z_][\w \t\*&:<>,]*[ \t\*&]\w+[ \t]*\([^;\n]*\)[ \t]*(?:const)?[ \t]*\{?[ \t]*$`),
	},
	"javascript": {
		regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+)?(?:default[ \t]+)?(?:async[ \t]+)?function\*?[ \t]*\w+[ \t]*\(`),
		regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+)?(?:default[ \t]+)?(?:abstract[ \t]+)?class[ \t]+\w+`),
		regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+)?(?:const|let|var)[ \t]+\w+[ \t]*=[ \t]*(?:async[ \t]*)?(?:\(|function)`),
		regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+)?(?:interface|type|enum)[ \t]+\w+`),
	},
	"go": {
		regexp.MustCompile(`(?m)^(?:func|type|var|const)[ \t]+[\w(]`),
	},
	"rust": {
		regexp.MustCompile(`(?m)^[ \t]*(?:pub(?:\([^)]*\))?[ \t]+)?(?:async[ \t]+)?(?:unsafe[ \t]+)?(?:fn|struct|enum|trait|impl|mod)\b`),
		regexp.MustCompile(`(?m)^[ \t]*#\[`),
	},
	"generic": {
		regexp.MustCompile(`(?m)^[ \t]*(?:def|function|class|module|sub|proc)[ \t]+\w+`),
		regexp.MustCompile(`(?m)^[ \t]*[A-Za-z_]\w*[ \t]+[A-Za-z_]\w*[ \t]*\([^)\n]*\)[^{\n]*\{`),
		regexp.MustCompile(`(?m)^[ \t]*(?:public|private|protected|static|final|abstract)[ \t]+`),
		regexp.MustCompile(`(?mi)^[ \t]*(?:create|alter|drop|insert|update|select)[ \t]`),
	},
}

// mark records a boundary at every match position. Positions are converted
// from byte offsets to rune offsets through runeAt.
type marker struct {
	tiers  []uint8
	runeAt []int32
}

func newMarker(content string) *marker {
	runeAt := make([]int32, len(content)+1)
	var r int32
	for i := range content {
		runeAt[i] = r
		r++
	}
	runeAt[len(content)] = r
	// Continuation bytes map to the rune they belong to.
	for i := 1; i < len(content); i++ {
		if !utf8.RuneStart(content[i]) {
			runeAt[i] = runeAt[i-1]
		}
	}
	return &marker{
		tiers:  make([]uint8, int(r)+1),
		runeAt: runeAt,
	}
}

// atStart marks the start of every match.
func (m *marker) atStart(content string, re *regexp.Regexp, tier uint8) {
	for _, loc := range re.FindAllStringIndex(content, -1) {
		m.set(int(m.runeAt[loc[0]]), tier)
	}
}

// atEnd marks the end of every match.
func (m *marker) atEnd(content string, re *regexp.Regexp, tier uint8) {
	for _, loc := range re.FindAllStringIndex(content, -1) {
		m.set(int(m.runeAt[loc[1]]), tier)
	}
}

func (m *marker) set(pos int, tier uint8) {
	if pos <= 0 || pos >= len(m.tiers) {
		return
	}
	if tier > m.tiers[pos] {
		m.tiers[pos] = tier
	}
}

// boundaries returns the strength of a cut before each rune position of
// content, or nil when the document type has no structure to respect.
func boundaries(doc *domain.Document) []uint8 {
	var strategy func(m *marker, content string)

	switch doc.TypeHint {
	case domain.TypeMarkdown:
		strategy = markdownBoundaries
	case domain.TypeText:
		strategy = textBoundaries
	case domain.TypeCode:
		strategy = func(m *marker, content string) {
			codeBoundaries(m, content, doc.Language)
		}
	default:
		return nil
	}

	m := newMarker(doc.Content)
	strategy(m, doc.Content)
	return m.tiers
}

func markdownBoundaries(m *marker, content string) {
	m.atEnd(content, lineBreak, tierLine)
	m.atEnd(content, paragraphBreak, tierBlock)
	m.atStart(content, headingLine, tierSection)
}

func textBoundaries(m *marker, content string) {
	m.atEnd(content, lineBreak, tierLine)
	m.atEnd(content, sentenceEnd, tierBlock)
	m.atEnd(content, paragraphBreak, tierSection)
}

func codeBoundaries(m *marker, content, language string) {
	patterns, ok := declarationPatterns[language]
	if !ok {
		patterns = declarationPatterns["generic"]
	}
	m.atEnd(content, lineBreak, tierLine)
	m.atEnd(content, paragraphBreak, tierBlock)
	for _, re := range patterns {
		m.atStart(content, re, tierSection)
	}
}
