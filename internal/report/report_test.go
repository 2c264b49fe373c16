package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/matthewbaird/compliance/internal/compliance"
)

func TestWorkbook(t *testing.T) {
	catalog := compliance.DefaultCatalog()
	due := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	done := time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)
	history := []compliance.Check{
		{ID: "c1", BuildingID: "b1", CheckType: compliance.FireAlarmTesting, Status: compliance.StatusOverdue, DueDate: &due, CreatedBy: "alice"},
		{ID: "c2", BuildingID: "b1", CheckType: compliance.FireAlarmTesting, Status: compliance.StatusSuccess, CompletedDate: &done, Notes: "all zones", CreatedBy: "bob"},
	}
	sum := compliance.Summarize("b1", history, catalog)

	out, err := Workbook(Building{ID: "b1", Name: "Alpha House"}, sum, history, catalog, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SummarySheet, HistorySheet}, f.GetSheetList())

	cell := func(sheet, ref string) string {
		v, err := f.GetCellValue(sheet, ref)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "Alpha House", cell(SummarySheet, "B1"))
	assert.Equal(t, "13%", cell(SummarySheet, "B3"))
	assert.Equal(t, "checks", cell(SummarySheet, "B4"))
	assert.Equal(t, "Check type", cell(SummarySheet, "A7"))

	// Catalog order: fire alarm testing is the fourth entry.
	assert.Equal(t, "Annual flat door inspection", cell(SummarySheet, "A8"))
	assert.Equal(t, "not recorded", cell(SummarySheet, "B8"))
	assert.Equal(t, "Fire alarm testing", cell(SummarySheet, "A11"))
	assert.Equal(t, "success", cell(SummarySheet, "B11"))
	assert.Equal(t, "2024-02-03", cell(SummarySheet, "D11"))
	assert.Equal(t, "all zones", cell(SummarySheet, "E11"))

	rows, err := f.GetRows(HistorySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "overdue", rows[1][1])
	assert.Equal(t, "2024-02-01", rows[1][2])
	assert.Equal(t, "bob", rows[2][6])
}
