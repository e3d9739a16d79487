package forecast

import (
	"time"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/shopspring/decimal"
)

const DefaultHorizonDays = 60

// Policy holds the configurable business rules of the depletion report.
type Policy struct {
	HorizonDays          int
	DefaultDailyForecast decimal.Decimal // used on dates no target covers
	AlertMultiplier      decimal.Decimal
	OrderMultiplier      decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		HorizonDays:          DefaultHorizonDays,
		DefaultDailyForecast: decimal.Zero,
		AlertMultiplier:      decimal.NewFromInt(1),
		OrderMultiplier:      decimal.NewFromInt(1),
	}
}

func (p Policy) normalized() Policy {
	if p.HorizonDays <= 0 {
		p.HorizonDays = DefaultHorizonDays
	}
	if !p.AlertMultiplier.IsPositive() {
		p.AlertMultiplier = decimal.NewFromInt(1)
	}
	if !p.OrderMultiplier.IsPositive() {
		p.OrderMultiplier = decimal.NewFromInt(1)
	}
	if p.DefaultDailyForecast.IsNegative() {
		p.DefaultDailyForecast = decimal.Zero
	}
	return p
}

type ReportInput struct {
	ProductID    int64
	Start        time.Time
	CurrentStock int
	Targets      []domain.SalesTarget
	LeadTime     domain.LeadTimeConfig
	Policy       Policy
}

// Assemble projects remaining stock forward from Start, one date at a time,
// subtracting each date's forecast from the running total. It is a pure
// function of its input.
func Assemble(in ReportInput) domain.DepletionReport {
	policy := in.Policy.normalized()
	start := domain.Day(in.Start)

	type day struct {
		date        time.Time
		forecast    decimal.Decimal
		fromDefault bool
	}

	days := make([]day, policy.HorizonDays)
	sum := decimal.Zero
	for i := range days {
		date := start.AddDate(0, 0, i)
		f, ok := ForecastFor(in.Targets, date)
		if !ok {
			f = policy.DefaultDailyForecast
		}
		days[i] = day{date: date, forecast: f, fromDefault: !ok}
		sum = sum.Add(f)
	}

	avg := sum.Div(decimal.NewFromInt(int64(len(days)))).Round(4)
	alertThreshold := decimal.NewFromInt(int64(in.LeadTime.ReorderLeadTime)).Mul(avg).Mul(policy.AlertMultiplier)
	orderThreshold := decimal.NewFromInt(int64(in.LeadTime.LocalWarehouseLeadTime)).Mul(avg).Mul(policy.OrderMultiplier)

	report := domain.DepletionReport{
		ProductID:            in.ProductID,
		GeneratedFor:         start,
		CurrentStock:         in.CurrentStock,
		LeadTime:             in.LeadTime,
		AverageDailyForecast: avg,
		AlertThreshold:       alertThreshold,
		OrderThreshold:       orderThreshold,
		Entries:              make([]domain.DepletionReportEntry, 0, len(days)),
	}

	remaining := decimal.NewFromInt(int64(in.CurrentStock))
	for _, d := range days {
		remaining = remaining.Sub(d.forecast)

		if report.DepletionDate == nil && !remaining.IsPositive() {
			date := d.date
			report.DepletionDate = &date
		}

		report.Entries = append(report.Entries, domain.DepletionReportEntry{
			ForecastDate:   d.date,
			DayName:        DayName(d.date),
			IsWeekend:      IsWeekend(d.date),
			RemainingStock: remaining,
			DailyForecast:  d.forecast,
			FromDefault:    d.fromDefault,
			StatusFlag:     Classify(remaining, alertThreshold, orderThreshold),
		})
	}

	return report
}

// Classify flags remaining stock below the alert threshold as Alert, and as
// Order when it is also below the order threshold.
func Classify(remaining, alertThreshold, orderThreshold decimal.Decimal) domain.StatusFlag {
	if !remaining.LessThan(alertThreshold) {
		return domain.StatusNone
	}
	if remaining.LessThan(orderThreshold) {
		return domain.StatusOrder
	}
	return domain.StatusAlert
}
