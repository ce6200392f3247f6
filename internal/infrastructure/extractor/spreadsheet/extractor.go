package spreadsheet

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Extractor renders every sheet of an xlsx workbook as tab separated text so
// the analysis functions can read financial statements shipped as spreadsheets.
type Extractor struct {
	maxRows int
}

func NewExtractor(maxRowsPerSheet int) *Extractor {
	if maxRowsPerSheet <= 0 {
		maxRowsPerSheet = 5000
	}
	return &Extractor{maxRows: maxRowsPerSheet}
}

func (e *Extractor) ExtractText(data []byte) (string, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	var out strings.Builder
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		lines := renderRows(rows, e.maxRows)
		if len(lines) == 0 {
			continue
		}
		if out.Len() > 0 {
			out.WriteString("\n")
		}
		out.WriteString("## ")
		out.WriteString(sheet)
		out.WriteString("\n")
		for _, line := range lines {
			out.WriteString(line)
			out.WriteString("\n")
		}
	}
	return strings.TrimSpace(out.String()), nil
}

func renderRows(rows [][]string, limit int) []string {
	lines := make([]string, 0, min(len(rows), limit))
	for _, row := range rows {
		if len(lines) == limit {
			break
		}
		cells := trimTrailingEmpty(row)
		if len(cells) == 0 {
			continue
		}
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		lines = append(lines, strings.Join(cells, "\t"))
	}
	return lines
}

func trimTrailingEmpty(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	return append([]string(nil), row[:end]...)
}
