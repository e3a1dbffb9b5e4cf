// Package extract turns uploaded office documents into plain text.
package extract

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Rrens/doc-assistant/internal/domain"
	"github.com/rs/zerolog/log"
)

// Extractor dispatches a document to the parser for its kind
type Extractor struct{}

// New creates a new extractor
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the plain text of a document. The result is sanitized and trimmed
// and may be empty when the document holds no extractable text.
func (e *Extractor) Extract(doc *domain.Document) (text string, err error) {
	if doc == nil {
		return "", fmt.Errorf("%w: no document", domain.ErrExtractionFailed)
	}

	kind := doc.Kind
	if kind == "" {
		kind, err = domain.KindFromName(doc.Name)
		if err != nil {
			return "", err
		}
	}

	// The PDF and spreadsheet parsers panic on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %s: %v", domain.ErrExtractionFailed, doc.Name, r)
		}
	}()

	var raw string
	switch kind {
	case domain.KindPDF:
		raw, err = extractPDF(doc.RawBytes)
	case domain.KindWordProc:
		raw, err = extractDocx(doc.RawBytes)
	case domain.KindSpreadsheet:
		raw, err = extractXLSX(doc.RawBytes)
	default:
		return "", domain.ErrUnsupportedKind
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrExtractionFailed, doc.Name, err)
	}

	text = Sanitize(raw)

	log.Debug().
		Str("name", doc.Name).
		Str("kind", string(kind)).
		Int("chars", len([]rune(text))).
		Msg("Document extracted")

	return text, nil
}

// Sanitize drops control characters other than newline and tab, normalizes line
// endings and trims surrounding whitespace.
func Sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case unicode.IsControl(r):
			continue
		case r == utf8.RuneError:
			continue
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
