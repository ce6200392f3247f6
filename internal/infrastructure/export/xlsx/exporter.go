package xlsx

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
)

const (
	ReviewSheet  = "Vastaukset"
	SummarySheet = "Yhteenveto"
)

var reviewHeader = []any{"#", "Kategoria", "Kysymys", "Vastaus"}

type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

// ExportReview writes the answers sheet first and a summary sheet with the
// report recommendations after it.
func (e *Exporter) ExportReview(review domain.Review) ([]byte, error) {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName("Sheet1", ReviewSheet); err != nil {
		return nil, fmt.Errorf("rename review sheet: %w", err)
	}
	if err := writeReviewSheet(book, review); err != nil {
		return nil, err
	}
	if _, err := book.NewSheet(SummarySheet); err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}
	if err := writeSummarySheet(book, review); err != nil {
		return nil, err
	}
	book.SetActiveSheet(0)

	buf, err := book.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write review workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeReviewSheet(book *excelize.File, review domain.Review) error {
	if err := setRow(book, ReviewSheet, 1, reviewHeader); err != nil {
		return err
	}
	for i, item := range review.Items {
		row := []any{i + 1, item.Category, item.Question, item.Answer}
		if err := setRow(book, ReviewSheet, i+2, row); err != nil {
			return err
		}
	}

	bold, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := book.SetCellStyle(ReviewSheet, "A1", "D1", bold); err != nil {
		return fmt.Errorf("style review header: %w", err)
	}
	widths := map[string]float64{"A": 6, "B": 24, "C": 60, "D": 60}
	for col, width := range widths {
		if err := book.SetColWidth(ReviewSheet, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}
	return nil
}

func writeSummarySheet(book *excelize.File, review domain.Review) error {
	rows := [][]any{
		{"Yritys", review.CompanyName},
		{"Vastattu", review.Summary},
	}
	recs := domain.ExtractRecommendations(review.Results)
	if len(recs) > 0 {
		rows = append(rows, []any{}, []any{"Suositus", "Prioriteetti", "Kuvaus"})
		for _, rec := range recs {
			rows = append(rows, []any{rec.Title, rec.Priority, rec.Details})
		}
	}
	for i, row := range rows {
		if err := setRow(book, SummarySheet, i+1, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(book *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := book.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
