package upload

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported upload format")

// Column aliases accepted in the header row, compared case-insensitively.
var columnAliases = map[string][]string{
	"sku":        {"sku", "seller_sku", "product_sku"},
	"product_id": {"product_id", "product"},
	"start_date": {"start_date", "start", "from"},
	"end_date":   {"end_date", "end", "to"},
	"forecast":   {"forecast", "sales_forecast", "daily_forecast"},
	"channel":    {"channel"},
}

var dateLayouts = []string{
	domain.DateLayout,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"1/2/06",
	"01-02-06",
	"02-Jan-2006",
	time.RFC3339,
}

// Result holds the well-formed rows of a file and the rows that were rejected.
type Result struct {
	Rows   []domain.ForecastRow
	Errors []domain.RowError
}

// Parse reads a forecast upload. The format is chosen by the file extension.
func Parse(filename string, r io.Reader) (*Result, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ParseCSV(r)
	case ".xlsx", ".xlsm":
		return ParseXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
}

// ParseCSV numbers rows by file line, counting from the header.
func ParseCSV(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, domain.ErrEmptyUpload
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	headerLine, _ := reader.FieldPos(0)

	var records []record
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record{row: line - headerLine, fields: fields})
	}
	return parseRecords(header, records)
}

// ParseXLSX reads the first sheet of a workbook.
func ParseXLSX(r io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrEmptyUpload
	}

	records := make([]record, 0, len(rows)-1)
	for i, fields := range rows[1:] {
		records = append(records, record{row: i + 1, fields: fields})
	}
	return parseRecords(rows[0], records)
}

type record struct {
	row    int
	fields []string
}

func parseRecords(header []string, records []record) (*Result, error) {
	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Rows:   []domain.ForecastRow{},
		Errors: []domain.RowError{},
	}
	for _, rec := range records {
		if blank(rec.fields) {
			continue
		}
		row, rowErr := parseRow(rec.row, rec.fields, cols)
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		result.Rows = append(result.Rows, row)
	}

	if len(result.Rows) == 0 && len(result.Errors) == 0 {
		return nil, domain.ErrEmptyUpload
	}
	return result, nil
}

func mapHeader(header []string) (map[string]int, error) {
	cols := make(map[string]int)
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		for canonical, aliases := range columnAliases {
			for _, alias := range aliases {
				if name == alias {
					if _, dup := cols[canonical]; !dup {
						cols[canonical] = i
					}
				}
			}
		}
	}

	_, hasSKU := cols["sku"]
	_, hasProduct := cols["product_id"]
	if !hasSKU && !hasProduct {
		return nil, fmt.Errorf("missing required column: sku")
	}
	for _, required := range []string{"start_date", "end_date", "forecast"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing required column: %s", required)
		}
	}
	return cols, nil
}

func parseRow(index int, record []string, cols map[string]int) (domain.ForecastRow, *domain.RowError) {
	row := domain.ForecastRow{Row: index}
	fail := func(field, format string, args ...any) (domain.ForecastRow, *domain.RowError) {
		return domain.ForecastRow{}, &domain.RowError{Row: index, Field: field, Message: fmt.Sprintf(format, args...)}
	}

	row.SKU = cell(record, cols, "sku")
	if raw := cell(record, cols, "product_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return fail("product_id", "invalid product id %q", raw)
		}
		row.ProductID = id
	}
	if row.SKU == "" && row.ProductID == 0 {
		return fail("sku", "sku is required")
	}

	var err error
	if row.StartDate, err = parseDate(cell(record, cols, "start_date")); err != nil {
		return fail("start_date", "%v", err)
	}
	if row.EndDate, err = parseDate(cell(record, cols, "end_date")); err != nil {
		return fail("end_date", "%v", err)
	}

	raw := strings.ReplaceAll(cell(record, cols, "forecast"), ",", "")
	if raw == "" {
		return fail("forecast", "forecast is required")
	}
	if row.Forecast, err = decimal.NewFromString(raw); err != nil {
		return fail("forecast", "invalid forecast %q", raw)
	}
	if row.Forecast.IsNegative() {
		return fail("forecast", "forecast must not be negative")
	}

	if ch := cell(record, cols, "channel"); ch != "" {
		row.Channel = &ch
	}
	return row, nil
}

// parseDate accepts the common text layouts and spreadsheet serial days.
func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return domain.Day(t), nil
		}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return domain.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

func cell(record []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
