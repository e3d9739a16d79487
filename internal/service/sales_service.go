package service

import (
	"context"
	"fmt"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/andresuchdata/autopo-py/depletion/internal/repository"
)

// ProductInvalidator drops derived data for a product.
type ProductInvalidator interface {
	InvalidateProduct(ctx context.Context, productID int64)
}

// SalesService records the inputs the forecast is derived from.
type SalesService struct {
	sales       repository.SalesRepository
	stock       repository.StockRepository
	invalidator ProductInvalidator
}

func NewSalesService(repos repository.Repositories, invalidator ProductInvalidator) *SalesService {
	return &SalesService{
		sales:       repos.Sales,
		stock:       repos.Stock,
		invalidator: invalidator,
	}
}

// RecordDailySales upserts by product, channel and day.
func (s *SalesService) RecordDailySales(ctx context.Context, records []domain.DailySaleRecord) error {
	if len(records) == 0 {
		return nil
	}

	products := make(map[int64]struct{})
	normalized := make([]domain.DailySaleRecord, len(records))
	for i, rec := range records {
		if rec.ProductID <= 0 {
			return fmt.Errorf("record %d: %w", i, domain.ErrInvalidProduct)
		}
		if rec.Channel == "" {
			return fmt.Errorf("record %d: channel is required: %w", i, domain.ErrInvalidSale)
		}
		if rec.UnitsSold < 0 {
			return fmt.Errorf("record %d: units_sold must not be negative: %w", i, domain.ErrInvalidSale)
		}
		rec.Date = domain.Day(rec.Date)
		normalized[i] = rec
		products[rec.ProductID] = struct{}{}
	}

	if err := s.sales.UpsertDailySales(ctx, normalized); err != nil {
		return err
	}

	for productID := range products {
		s.invalidate(ctx, productID)
	}
	return nil
}

// SyncStock overwrites the latest stock position of a product.
func (s *SalesService) SyncStock(ctx context.Context, snapshot *domain.StockSnapshot) error {
	if snapshot == nil || snapshot.ProductID <= 0 {
		return domain.ErrInvalidProduct
	}

	if err := s.stock.SaveSnapshot(ctx, snapshot); err != nil {
		return err
	}
	s.invalidate(ctx, snapshot.ProductID)
	return nil
}

func (s *SalesService) invalidate(ctx context.Context, productID int64) {
	if s.invalidator != nil {
		s.invalidator.InvalidateProduct(ctx, productID)
	}
}
