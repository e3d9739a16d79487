package repository

import (
	"context"
	"time"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
)

// ProductRepository resolves products. A missing product is (nil, nil).
type ProductRepository interface {
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
	ResolveSKUs(ctx context.Context, skus []string) (map[string]int64, error)
	ListProductIDs(ctx context.Context) ([]int64, error)
	// ExistingProductIDs reports which of ids are products; unknown ids are absent.
	ExistingProductIDs(ctx context.Context, ids []int64) (map[int64]bool, error)
}

type StockRepository interface {
	// GetCurrentStockTotals returns the latest snapshot; a product with no
	// stock rows yields an empty snapshot, not an error.
	GetCurrentStockTotals(ctx context.Context, productID int64) (*domain.StockSnapshot, error)
	SaveSnapshot(ctx context.Context, snapshot *domain.StockSnapshot) error
}

type SalesRepository interface {
	GetDailySales(ctx context.Context, productID int64, from, to time.Time) ([]domain.DailySaleRecord, error)
	UpsertDailySales(ctx context.Context, records []domain.DailySaleRecord) error
}

// MergeFunc computes the new stored ranges of a product from the current ones.
type MergeFunc func(existing []domain.SalesTarget) []domain.SalesTarget

type SalesTargetRepository interface {
	GetActiveForecastRanges(ctx context.Context, productID int64) ([]domain.SalesTarget, error)
	ReplaceForecastRanges(ctx context.Context, productID int64, ranges []domain.SalesTarget) error
	// MergeForecastRanges reads, merges and replaces a product's ranges while
	// holding a per-product lock, so concurrent uploads serialize.
	MergeForecastRanges(ctx context.Context, productID int64, merge MergeFunc) ([]domain.SalesTarget, error)
}

// LeadTimeRepository returns (nil, nil) when a product has no explicit config.
type LeadTimeRepository interface {
	GetLeadTimeConfig(ctx context.Context, productID int64) (*domain.LeadTimeConfig, error)
}

// Repositories groups the stores the services depend on.
type Repositories struct {
	Products  ProductRepository
	Stock     StockRepository
	Sales     SalesRepository
	Targets   SalesTargetRepository
	LeadTimes LeadTimeRepository
}
