package cache

import (
	"context"
	"time"

	"github.com/andresuchdata/autopo-py/depletion/internal/config"
	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
)

// DepletionReportCache stores assembled reports per product and start day.
// Filtering and pagination run on top of the cached full horizon.
type DepletionReportCache interface {
	GetReport(ctx context.Context, productID int64, day time.Time) (*domain.DepletionReport, bool, error)
	SetReport(ctx context.Context, report *domain.DepletionReport) error
	InvalidateProduct(ctx context.Context, productID int64) error
	InvalidateAll(ctx context.Context) error
}

type redisDepletionReportCache struct {
	store *reportStore
}

type noopDepletionReportCache struct{}

func NewDepletionReportCache(cfg config.CacheConfig) (DepletionReportCache, error) {
	if !cfg.Enabled {
		return &noopDepletionReportCache{}, nil
	}

	store, err := connectReportStore(cfg)
	if err != nil {
		return nil, err
	}
	return &redisDepletionReportCache{store: store}, nil
}

func NewNoopDepletionReportCache() DepletionReportCache {
	return &noopDepletionReportCache{}
}

func (c *redisDepletionReportCache) GetReport(ctx context.Context, productID int64, day time.Time) (*domain.DepletionReport, bool, error) {
	return c.store.load(ctx, productID, day)
}

func (c *redisDepletionReportCache) SetReport(ctx context.Context, report *domain.DepletionReport) error {
	return c.store.save(ctx, report)
}

func (c *redisDepletionReportCache) InvalidateProduct(ctx context.Context, productID int64) error {
	return c.store.purge(ctx, productKeyPrefix(productID))
}

func (c *redisDepletionReportCache) InvalidateAll(ctx context.Context) error {
	return c.store.purge(ctx, depletionReportKeyPrefix+":")
}

func (n *noopDepletionReportCache) GetReport(ctx context.Context, productID int64, day time.Time) (*domain.DepletionReport, bool, error) {
	return nil, false, nil
}

func (n *noopDepletionReportCache) SetReport(ctx context.Context, report *domain.DepletionReport) error {
	return nil
}

func (n *noopDepletionReportCache) InvalidateProduct(ctx context.Context, productID int64) error {
	return nil
}

func (n *noopDepletionReportCache) InvalidateAll(ctx context.Context) error {
	return nil
}
