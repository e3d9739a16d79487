package forecast

import (
	"sort"
	"strings"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Paginate filters, sorts and slices the report entries for tabular display.
func Paginate(report domain.DepletionReport, filter domain.ReportFilter) domain.DepletionReportPage {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	entries := make([]domain.DepletionReportEntry, 0, len(report.Entries))
	for _, e := range report.Entries {
		if filter.Status != nil && e.StatusFlag != *filter.Status {
			continue
		}
		entries = append(entries, e)
	}

	desc := strings.EqualFold(filter.SortDir, "desc")
	less := entryLess(strings.ToLower(filter.SortField))
	sort.SliceStable(entries, func(i, j int) bool {
		if desc {
			return less(entries[j], entries[i])
		}
		return less(entries[i], entries[j])
	})

	total := len(entries)
	totalPages := (total + pageSize - 1) / pageSize

	from := (page - 1) * pageSize
	if from > total {
		from = total
	}
	to := from + pageSize
	if to > total {
		to = total
	}

	return domain.DepletionReportPage{
		ProductID:            report.ProductID,
		CurrentStock:         report.CurrentStock,
		AverageDailyForecast: report.AverageDailyForecast,
		DepletionDate:        report.DepletionDate,
		Items:                entries[from:to],
		Total:                total,
		Page:                 page,
		PageSize:             pageSize,
		TotalPages:           totalPages,
	}
}

func entryLess(field string) func(a, b domain.DepletionReportEntry) bool {
	switch field {
	case "remaining_stock":
		return func(a, b domain.DepletionReportEntry) bool { return a.RemainingStock.LessThan(b.RemainingStock) }
	case "daily_forecast":
		return func(a, b domain.DepletionReportEntry) bool { return a.DailyForecast.LessThan(b.DailyForecast) }
	default:
		return func(a, b domain.DepletionReportEntry) bool { return a.ForecastDate.Before(b.ForecastDate) }
	}
}
