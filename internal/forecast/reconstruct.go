package forecast

import (
	"time"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
)

// DefaultPastWindowDays is the trailing window shown on the product page.
const DefaultPastWindowDays = 14

// SalesByDay maps a calendar day (domain.DateLayout) to units sold.
type SalesByDay map[string]int

// SalesIndex aggregates channel-level records into one value per day.
func SalesIndex(records []domain.DailySaleRecord) SalesByDay {
	index := make(SalesByDay, len(records))
	for _, r := range records {
		index[domain.Day(r.Date).Format(domain.DateLayout)] += r.UnitsSold
	}
	return index
}

// On returns the units sold on day, 0 when nothing was recorded.
func (s SalesByDay) On(day time.Time) int {
	if s == nil {
		return 0
	}
	return s[domain.Day(day).Format(domain.DateLayout)]
}

type ReconstructInput struct {
	Today        time.Time
	CurrentStock int
	Sales        SalesByDay
	Targets      []domain.SalesTarget
	Days         int
}

// Reconstruct derives end-of-day stock for the Days ending at Today from the
// current stock alone. End of today is current stock minus today's sales;
// each earlier day adds back what was sold on the day after it.
// The result is ordered oldest first.
func Reconstruct(in ReconstructInput) []domain.PastSalesData {
	days := in.Days
	if days <= 0 {
		days = DefaultPastWindowDays
	}

	today := domain.Day(in.Today)
	window := make([]domain.PastSalesData, 0, days)

	endOfDay := in.CurrentStock - in.Sales.On(today)
	for i := 0; i < days; i++ {
		day := today.AddDate(0, 0, -i)
		if i > 0 {
			endOfDay += in.Sales.On(day.AddDate(0, 0, 1))
		}

		entry := domain.PastSalesData{
			Date:           day,
			DayOfWeek:      DayName(day),
			UnitsSold:      in.Sales.On(day),
			RemainingStock: endOfDay,
		}
		if f, ok := ForecastFor(in.Targets, day); ok {
			entry.DailyForecast = &f
		}
		window = append(window, entry)
	}

	// built newest first
	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}

	return window
}
