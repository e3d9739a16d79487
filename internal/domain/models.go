package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day format used on the wire and as index keys.
const DateLayout = "2006-01-02"

var (
	ErrInvalidProduct = errors.New("invalid product id")
	ErrEmptyUpload    = errors.New("upload contains no rows")
	ErrInvalidUpload  = errors.New("invalid upload")
	ErrInvalidSale    = errors.New("invalid sale record")
)

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Product is the internal catalogue entry a forecast is attached to.
type Product struct {
	ID   int64   `json:"id" db:"id"`
	SKU  string  `json:"sku" db:"sku"`
	ASIN *string `json:"asin,omitempty" db:"asin"`
	Name string  `json:"name" db:"name"`
}

// SalesTarget is a forecast commitment of SalesForecast units per day over
// the inclusive range [StartDate, EndDate].
type SalesTarget struct {
	ID            int64           `json:"id" db:"id"`
	ProductID     int64           `json:"product_id" db:"product_id"`
	StartDate     time.Time       `json:"start_date" db:"start_date"`
	EndDate       time.Time       `json:"end_date" db:"end_date"`
	SalesForecast decimal.Decimal `json:"sales_forecast" db:"sales_forecast"`
	Channel       *string         `json:"channel,omitempty" db:"channel"`
	UploadBatch   string          `json:"upload_batch,omitempty" db:"upload_batch"`
}

// Covers reports whether day falls within the target's inclusive range.
func (t SalesTarget) Covers(day time.Time) bool {
	day = Day(day)
	return !day.Before(Day(t.StartDate)) && !day.After(Day(t.EndDate))
}

// Overlaps uses inclusive-date semantics.
func (t SalesTarget) Overlaps(other SalesTarget) bool {
	return !Day(t.StartDate).After(Day(other.EndDate)) && !Day(t.EndDate).Before(Day(other.StartDate))
}

// DailySaleRecord is units sold for one product on one channel and day.
type DailySaleRecord struct {
	ProductID int64     `json:"product_id" db:"product_id"`
	Channel   string    `json:"channel" db:"channel"`
	Date      time.Time `json:"date" db:"sale_date"`
	UnitsSold int       `json:"units_sold" db:"units_sold"`
}

type ChannelStock struct {
	Channel      string `json:"channel" db:"channel"`
	CurrentStock int    `json:"current_stock" db:"current_stock"`
}

type WarehouseStock struct {
	Warehouse      string `json:"warehouse" db:"warehouse"`
	AvailableStock int    `json:"available_stock" db:"available_stock"`
}

// StockSnapshot is the latest known stock position. There is no historical
// ledger; past positions are derived from sales.
type StockSnapshot struct {
	ProductID     int64            `json:"product_id"`
	Warehouses    []WarehouseStock `json:"warehouses"`
	ChannelStocks []ChannelStock   `json:"channel_stocks"`
	ObservedAt    time.Time        `json:"observed_at"`
}

// WarehouseStock returns available stock summed across warehouses.
func (s *StockSnapshot) WarehouseStock() int {
	if s == nil {
		return 0
	}
	total := 0
	for _, w := range s.Warehouses {
		total += w.AvailableStock
	}
	return total
}

// Total is warehouse available stock plus every channel's current stock.
func (s *StockSnapshot) Total() int {
	if s == nil {
		return 0
	}
	total := s.WarehouseStock()
	for _, c := range s.ChannelStocks {
		total += c.CurrentStock
	}
	return total
}

// LeadTimeConfig holds replenishment lead times in days.
type LeadTimeConfig struct {
	ProductID              int64 `json:"product_id" db:"product_id"`
	LocalWarehouseLeadTime int   `json:"local_warehouse_lead_time" db:"local_warehouse_lead_time"`
	ReorderLeadTime        int   `json:"reorder_lead_time" db:"reorder_lead_time"`
}

// PastSalesData is one reconstructed day of the trailing window.
type PastSalesData struct {
	Date           time.Time        `json:"date"`
	DayOfWeek      string           `json:"day_of_week"`
	UnitsSold      int              `json:"units_sold"`
	RemainingStock int              `json:"remaining_stock"`
	DailyForecast  *decimal.Decimal `json:"daily_forecast"`
}

// ForecastRow is a parsed, well-formed upload row. Row is the 1-based data
// row index within the uploaded file.
type ForecastRow struct {
	Row       int             `json:"row"`
	SKU       string          `json:"sku,omitempty"`
	ProductID int64           `json:"product_id,omitempty"`
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date"`
	Forecast  decimal.Decimal `json:"forecast"`
	Channel   *string         `json:"channel,omitempty"`
}

// RowError reports a rejected upload row.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ImportResult summarises a bulk forecast upload.
type ImportResult struct {
	BatchID  string     `json:"batch_id"`
	Rows     int        `json:"rows"`
	Products int        `json:"products"`
	Accepted int        `json:"accepted"`
	Replaced int        `json:"replaced"`
	Dropped  int        `json:"dropped"`
	Errors   []RowError `json:"errors"`
}
