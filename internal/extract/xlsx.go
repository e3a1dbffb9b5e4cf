package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const columnSeparator = "  "

// extractXLSX renders the first sheet as a fixed-width table. The first row is
// used as the header line and row indices are not emitted.
func extractXLSX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty spreadsheet")
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", errors.New("spreadsheet has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	return RenderTable(rows), nil
}

// RenderTable lays out rows as right-aligned fixed-width columns. Ragged rows are
// padded with empty cells.
func RenderTable(rows [][]string) string {
	cols := 0
	for _, row := range rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		return ""
	}

	widths := make([]int, cols)
	for _, row := range rows {
		for i, cell := range row {
			if w := utf8.RuneCountInString(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	for r, row := range rows {
		if r > 0 {
			b.WriteByte('\n')
		}
		for i := 0; i < cols; i++ {
			if i > 0 {
				b.WriteString(columnSeparator)
			}
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)))
			b.WriteString(cell)
		}
	}
	return b.String()
}
