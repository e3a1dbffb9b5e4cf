package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxBodyPath = "word/document.xml"

// extractDocx walks the paragraphs of word/document.xml in document order and
// emits each paragraph's text followed by a newline.
func extractDocx(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBodyPath {
			body = f
			break
		}
	}
	if body == nil {
		return "", errors.New("docx archive has no " + docxBodyPath)
	}

	rc, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", docxBodyPath, err)
	}
	defer rc.Close()

	return readParagraphs(rc)
}

// readParagraphs emits one line per w:p. Paragraphs nested in text boxes are
// flushed when they close and the enclosing paragraph resumes afterwards.
// Paragraph properties and mc:Fallback copies of drawings are skipped.
func readParagraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		out    strings.Builder
		open   []*strings.Builder
		runs   int
		inText bool
	)

	current := func() *strings.Builder {
		if len(open) == 0 {
			return nil
		}
		return open[len(open)-1]
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode %s: %w", docxBodyPath, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pPr", "Fallback":
				if err := dec.Skip(); err != nil {
					return "", fmt.Errorf("decode %s: %w", docxBodyPath, err)
				}
			case "p":
				open = append(open, &strings.Builder{})
			case "r":
				runs++
			case "t":
				inText = true
			case "tab":
				if para := current(); para != nil && runs > 0 {
					para.WriteByte('\t')
				}
			case "br", "cr":
				if para := current(); para != nil && runs > 0 {
					para.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "r":
				if runs > 0 {
					runs--
				}
			case "p":
				if para := current(); para != nil {
					out.WriteString(para.String())
					out.WriteByte('\n')
					open = open[:len(open)-1]
				}
			}
		case xml.CharData:
			if para := current(); para != nil && inText {
				para.Write(t)
			}
		}
	}

	return out.String(), nil
}
