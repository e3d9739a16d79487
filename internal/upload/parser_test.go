package upload

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseCSV(t *testing.T) {
	input := strings.Join([]string{
		"SKU,Start_Date,End_Date,Sales_Forecast,Channel",
		"MUG-01,2026-01-01,2026-01-10,5,amazon",
		"MUG-02,01/05/2026,01/15/2026,\"1,200.5\",",
		"",
		"MUG-03,not-a-date,2026-01-10,5,",
		"MUG-04,2026-01-01,2026-01-10,-1,",
		",2026-01-01,2026-01-10,3,",
	}, "\n")

	result, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)

	first := result.Rows[0]
	assert.Equal(t, 1, first.Row)
	assert.Equal(t, "MUG-01", first.SKU)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), first.StartDate)
	assert.True(t, first.Forecast.Equal(decimal.NewFromInt(5)))
	require.NotNil(t, first.Channel)
	assert.Equal(t, "amazon", *first.Channel)

	second := result.Rows[1]
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), second.EndDate)
	assert.True(t, second.Forecast.Equal(decimal.RequireFromString("1200.5")))
	assert.Nil(t, second.Channel)

	assert.Equal(t, []domain.RowError{
		{Row: 4, Field: "start_date", Message: `invalid date "not-a-date"`},
		{Row: 5, Field: "forecast", Message: "forecast must not be negative"},
		{Row: 6, Field: "sku", Message: "sku is required"},
	}, result.Errors)
}

func TestParseCSV_InvalidRangesAreNotRowErrors(t *testing.T) {
	input := "sku,start_date,end_date,forecast\nMUG-01,2026-01-10,2026-01-01,5\n"

	result, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Empty(t, result.Errors)
}

func TestParseCSV_HeaderErrors(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, domain.ErrEmptyUpload)

	_, err = ParseCSV(strings.NewReader("sku,start_date,end_date,forecast\n"))
	assert.ErrorIs(t, err, domain.ErrEmptyUpload)

	_, err = ParseCSV(strings.NewReader("sku,start_date,forecast\nA,2026-01-01,5\n"))
	assert.EqualError(t, err, "missing required column: end_date")
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"product_id", "start_date", "end_date", "forecast"},
		{7, "2026-02-01", "46067", 2.5},
	}
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellRef, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	result, err := Parse("targets.xlsx", &buf)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, int64(7), result.Rows[0].ProductID)
	assert.Equal(t, time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC), result.Rows[0].EndDate)
	assert.True(t, result.Rows[0].Forecast.Equal(decimal.RequireFromString("2.5")))
}

func TestParse_UnsupportedFormat(t *testing.T) {
	_, err := Parse("targets.json", strings.NewReader("{}"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
