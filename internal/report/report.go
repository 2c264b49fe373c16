// Package report renders compliance summaries as spreadsheets.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/matthewbaird/compliance/internal/compliance"
)

const (
	SummarySheet = "Summary"
	HistorySheet = "History"

	dateLayout = "2006-01-02"
)

// Building describes the building a report is for.
type Building struct {
	ID   string
	Name string
}

var (
	summaryHeader = []string{"Check type", "Status", "Due date", "Completed date", "Notes"}
	historyHeader = []string{"Check type", "Status", "Due date", "Completed date", "Notes", "Recorded at", "Recorded by"}
	columnWidths  = []float64{32, 12, 14, 16, 40, 22, 18}
)

// Workbook builds an xlsx file with the building's summary on the first sheet
// and its full check history on the second. Summary rows follow catalog order.
func Workbook(b Building, sum compliance.Summary, history []compliance.Check, catalog compliance.Catalog, generated time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, fmt.Errorf("renaming sheet: %w", err)
	}
	if _, err := f.NewSheet(HistorySheet); err != nil {
		return nil, fmt.Errorf("creating history sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating header style: %w", err)
	}

	meta := [][]any{
		{"Building", b.Name},
		{"Building ID", b.ID},
		{"Compliance", fmt.Sprintf("%d%%", sum.Percentage)},
		{"Based on", string(sum.Source)},
		{"Generated", generated.UTC().Format(time.RFC3339)},
	}
	for i, row := range meta {
		if err := setRow(f, SummarySheet, i+1, row); err != nil {
			return nil, err
		}
	}

	headerRow := len(meta) + 2
	if err := writeHeader(f, SummarySheet, headerRow, summaryHeader, headerStyle); err != nil {
		return nil, err
	}
	for i, t := range catalog.Types() {
		row := []any{catalog.Label(t), "not recorded", "", "", ""}
		if c := sum.ByType[t]; c != nil {
			row = []any{catalog.Label(t), string(c.Status), formatDate(c.DueDate), formatDate(c.CompletedDate), c.Notes}
		}
		if err := setRow(f, SummarySheet, headerRow+1+i, row); err != nil {
			return nil, err
		}
	}

	if err := writeHeader(f, HistorySheet, 1, historyHeader, headerStyle); err != nil {
		return nil, err
	}
	for i, c := range history {
		row := []any{
			catalog.Label(c.CheckType), string(c.Status), formatDate(c.DueDate), formatDate(c.CompletedDate),
			c.Notes, c.CreatedAt.UTC().Format(time.RFC3339), c.CreatedBy,
		}
		if err := setRow(f, HistorySheet, i+2, row); err != nil {
			return nil, err
		}
	}
	if err := f.SetPanes(HistorySheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freezing history header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, row int, header []string, style int) error {
	for i, h := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("setting header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("styling header %s: %w", cell, err)
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, columnWidths[i]); err != nil {
			return fmt.Errorf("setting width of %s: %w", col, err)
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
	}
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(dateLayout)
}
