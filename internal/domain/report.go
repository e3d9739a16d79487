package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DepletionReportEntry is one projected date of the forward report.
type DepletionReportEntry struct {
	ForecastDate   time.Time       `json:"forecast_date"`
	DayName        string          `json:"day_name"`
	IsWeekend      bool            `json:"is_weekend"`
	RemainingStock decimal.Decimal `json:"remaining_stock"`
	DailyForecast  decimal.Decimal `json:"daily_forecast"`
	FromDefault    bool            `json:"from_default"`
	StatusFlag     StatusFlag      `json:"status_flag"`
}

// DepletionReport is the full forward projection for one product.
type DepletionReport struct {
	ProductID            int64                  `json:"product_id"`
	GeneratedFor         time.Time              `json:"generated_for"`
	CurrentStock         int                    `json:"current_stock"`
	LeadTime             LeadTimeConfig         `json:"lead_time"`
	AverageDailyForecast decimal.Decimal        `json:"average_daily_forecast"`
	AlertThreshold       decimal.Decimal        `json:"alert_threshold"`
	OrderThreshold       decimal.Decimal        `json:"order_threshold"`
	DepletionDate        *time.Time             `json:"depletion_date"`
	Entries              []DepletionReportEntry `json:"entries"`
}

// ReportFilter selects and orders report entries for tabular display.
type ReportFilter struct {
	Status    *StatusFlag `json:"status"`
	SortField string      `json:"sort_field"`
	SortDir   string      `json:"sort_direction"`
	Page      int         `json:"page"`
	PageSize  int         `json:"page_size"`
}

// DepletionReportPage is the paginated response for the depletion table.
type DepletionReportPage struct {
	ProductID            int64                  `json:"product_id"`
	CurrentStock         int                    `json:"current_stock"`
	AverageDailyForecast decimal.Decimal        `json:"average_daily_forecast"`
	DepletionDate        *time.Time             `json:"depletion_date"`
	Items                []DepletionReportEntry `json:"items"`
	Total                int                    `json:"total"`
	Page                 int                    `json:"page"`
	PageSize             int                    `json:"page_size"`
	TotalPages           int                    `json:"total_pages"`
}
