package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-py/depletion/internal/cache"
	"github.com/andresuchdata/autopo-py/depletion/internal/config"
	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/andresuchdata/autopo-py/depletion/internal/forecast"
	"github.com/andresuchdata/autopo-py/depletion/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const importConcurrency = 4

type ForecastService struct {
	repos           repository.Repositories
	cache           cache.DepletionReportCache
	policy          forecast.Policy
	pastWindowDays  int
	defaultLeadTime domain.LeadTimeConfig
	now             func() time.Time
}

func NewForecastService(repos repository.Repositories, cacheImpl cache.DepletionReportCache, cfg config.ForecastConfig) *ForecastService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopDepletionReportCache()
	}
	window := cfg.PastWindowDays
	if window <= 0 {
		window = forecast.DefaultPastWindowDays
	}
	return &ForecastService{
		repos:          repos,
		cache:          cacheImpl,
		policy:         PolicyFromConfig(cfg),
		pastWindowDays: window,
		defaultLeadTime: domain.LeadTimeConfig{
			LocalWarehouseLeadTime: cfg.LocalWarehouseLeadTime,
			ReorderLeadTime:        cfg.ReorderLeadTime,
		},
		now: time.Now,
	}
}

// PolicyFromConfig converts configured business rules to a report policy.
func PolicyFromConfig(cfg config.ForecastConfig) forecast.Policy {
	return forecast.Policy{
		HorizonDays:          cfg.HorizonDays,
		DefaultDailyForecast: decimal.NewFromFloat(cfg.DefaultDailyForecast),
		AlertMultiplier:      decimal.NewFromFloat(cfg.AlertMultiplier),
		OrderMultiplier:      decimal.NewFromFloat(cfg.OrderMultiplier),
	}
}

// WithClock replaces the clock used to determine today.
func (s *ForecastService) WithClock(now func() time.Time) *ForecastService {
	s.now = now
	return s
}

func (s *ForecastService) today() time.Time {
	return domain.Day(s.now())
}

// PastSales reconstructs stock over the trailing window ending today.
func (s *ForecastService) PastSales(ctx context.Context, productID int64) ([]domain.PastSalesData, error) {
	known, err := s.productExists(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !known {
		return []domain.PastSalesData{}, nil
	}

	today := s.today()
	from := today.AddDate(0, 0, -(s.pastWindowDays - 1))

	var (
		snapshot *domain.StockSnapshot
		sales    []domain.DailySaleRecord
		targets  []domain.SalesTarget
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snapshot, err = s.repos.Stock.GetCurrentStockTotals(gctx, productID)
		return err
	})
	g.Go(func() error {
		var err error
		sales, err = s.repos.Sales.GetDailySales(gctx, productID, from, today)
		return err
	})
	g.Go(func() error {
		var err error
		targets, err = s.repos.Targets.GetActiveForecastRanges(gctx, productID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return forecast.Reconstruct(forecast.ReconstructInput{
		Today:        today,
		CurrentStock: snapshot.Total(),
		Sales:        forecast.SalesIndex(sales),
		Targets:      targets,
		Days:         s.pastWindowDays,
	}), nil
}

// DepletionReport projects stock forward from today over the policy horizon.
func (s *ForecastService) DepletionReport(ctx context.Context, productID int64) (*domain.DepletionReport, error) {
	today := s.today()

	if report, ok, err := s.cache.GetReport(ctx, productID, today); err == nil && ok {
		return report, nil
	} else if err != nil {
		log.Warn().Err(err).Int64("product_id", productID).Msg("depletion: cache get report failed")
	}

	known, err := s.productExists(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !known {
		return &domain.DepletionReport{
			ProductID:    productID,
			GeneratedFor: today,
			Entries:      []domain.DepletionReportEntry{},
		}, nil
	}

	var (
		snapshot *domain.StockSnapshot
		targets  []domain.SalesTarget
		leadTime *domain.LeadTimeConfig
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snapshot, err = s.repos.Stock.GetCurrentStockTotals(gctx, productID)
		return err
	})
	g.Go(func() error {
		var err error
		targets, err = s.repos.Targets.GetActiveForecastRanges(gctx, productID)
		return err
	})
	g.Go(func() error {
		var err error
		leadTime, err = s.repos.LeadTimes.GetLeadTimeConfig(gctx, productID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lt := s.defaultLeadTime
	if leadTime != nil {
		lt = *leadTime
	}
	lt.ProductID = productID

	report := forecast.Assemble(forecast.ReportInput{
		ProductID:    productID,
		Start:        today,
		CurrentStock: snapshot.Total(),
		Targets:      targets,
		LeadTime:     lt,
		Policy:       s.policy,
	})

	if err := s.cache.SetReport(ctx, &report); err != nil {
		log.Warn().Err(err).Int64("product_id", productID).Msg("depletion: cache set report failed")
	}

	return &report, nil
}

func (s *ForecastService) DepletionReportPage(ctx context.Context, productID int64, filter domain.ReportFilter) (*domain.DepletionReportPage, error) {
	report, err := s.DepletionReport(ctx, productID)
	if err != nil {
		return nil, err
	}
	page := forecast.Paginate(*report, filter)
	return &page, nil
}

func (s *ForecastService) ForecastRanges(ctx context.Context, productID int64) ([]domain.SalesTarget, error) {
	targets, err := s.repos.Targets.GetActiveForecastRanges(ctx, productID)
	if err != nil {
		return nil, err
	}
	if targets == nil {
		targets = []domain.SalesTarget{}
	}
	return targets, nil
}

// SaveForecastRanges replaces a product's ranges with the submitted set after
// merging it against itself.
func (s *ForecastService) SaveForecastRanges(ctx context.Context, productID int64, targets []domain.SalesTarget) (*forecast.MergeResult, error) {
	if productID <= 0 {
		return nil, domain.ErrInvalidProduct
	}

	candidates := make([]domain.SalesTarget, len(targets))
	for i, t := range targets {
		t.ID = 0
		t.ProductID = productID
		candidates[i] = t
	}

	result := forecast.Merge(nil, candidates)
	if err := s.repos.Targets.ReplaceForecastRanges(ctx, productID, result.Targets); err != nil {
		return nil, err
	}
	s.invalidate(ctx, productID)

	stored, err := s.ForecastRanges(ctx, productID)
	if err != nil {
		return nil, err
	}
	result.Targets = stored
	return &result, nil
}

type productImport struct {
	productID  int64
	candidates []domain.SalesTarget
	replaced   int
	dropped    int
}

// ImportForecastRows merges uploaded rows into stored ranges product by
// product. Rows with an unknown SKU are reported and skipped.
func (s *ForecastService) ImportForecastRows(ctx context.Context, rows []domain.ForecastRow) (*domain.ImportResult, error) {
	result := &domain.ImportResult{
		BatchID: uuid.NewString(),
		Rows:    len(rows),
		Errors:  []domain.RowError{},
	}
	if len(rows) == 0 {
		return result, nil
	}

	resolved, known, err := s.resolveRows(ctx, rows)
	if err != nil {
		return nil, err
	}

	var (
		imports []*productImport
		byID    = make(map[int64]*productImport)
	)
	for _, row := range rows {
		productID := row.ProductID
		if productID != 0 && !known[productID] {
			result.Errors = append(result.Errors, domain.RowError{
				Row:     row.Row,
				Field:   "product_id",
				Message: fmt.Sprintf("unknown product %d", productID),
			})
			continue
		}
		if productID == 0 {
			id, ok := resolved[normalizeSKU(row.SKU)]
			if !ok {
				result.Errors = append(result.Errors, domain.RowError{
					Row:     row.Row,
					Field:   "sku",
					Message: fmt.Sprintf("unknown sku %q", row.SKU),
				})
				continue
			}
			productID = id
		}

		imp, ok := byID[productID]
		if !ok {
			imp = &productImport{productID: productID}
			byID[productID] = imp
			imports = append(imports, imp)
		}
		imp.candidates = append(imp.candidates, domain.SalesTarget{
			ProductID:     productID,
			StartDate:     domain.Day(row.StartDate),
			EndDate:       domain.Day(row.EndDate),
			SalesForecast: row.Forecast,
			Channel:       row.Channel,
			UploadBatch:   result.BatchID,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(importConcurrency)
	for _, imp := range imports {
		g.Go(func() error {
			_, err := s.repos.Targets.MergeForecastRanges(gctx, imp.productID, func(existing []domain.SalesTarget) []domain.SalesTarget {
				merged := forecast.Merge(existing, imp.candidates)
				imp.replaced = merged.Replaced
				imp.dropped = merged.Dropped
				return merged.Targets
			})
			if err != nil {
				return err
			}
			// the merge is committed whatever happens to other products
			s.invalidate(ctx, imp.productID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, imp := range imports {
		result.Products++
		result.Accepted += len(imp.candidates) - imp.dropped
		result.Replaced += imp.replaced
		result.Dropped += imp.dropped
	}

	log.Info().
		Str("batch_id", result.BatchID).
		Int("rows", result.Rows).
		Int("products", result.Products).
		Int("accepted", result.Accepted).
		Int("rejected", len(result.Errors)).
		Msg("forecast upload imported")

	return result, nil
}

// resolveRows maps upload SKUs to product ids and reports which explicit
// product ids exist, one query each.
func (s *ForecastService) resolveRows(ctx context.Context, rows []domain.ForecastRow) (map[string]int64, map[int64]bool, error) {
	seenSKU := make(map[string]struct{})
	seenID := make(map[int64]struct{})
	var (
		skus []string
		ids  []int64
	)
	for _, row := range rows {
		if row.ProductID != 0 {
			if _, ok := seenID[row.ProductID]; !ok {
				seenID[row.ProductID] = struct{}{}
				ids = append(ids, row.ProductID)
			}
			continue
		}
		sku := normalizeSKU(row.SKU)
		if _, ok := seenSKU[sku]; ok || sku == "" {
			continue
		}
		seenSKU[sku] = struct{}{}
		skus = append(skus, sku)
	}

	resolved := map[string]int64{}
	if len(skus) > 0 {
		var err error
		if resolved, err = s.repos.Products.ResolveSKUs(ctx, skus); err != nil {
			return nil, nil, err
		}
	}

	known := map[int64]bool{}
	if len(ids) > 0 {
		var err error
		if known, err = s.repos.Products.ExistingProductIDs(ctx, ids); err != nil {
			return nil, nil, err
		}
	}
	return resolved, known, nil
}

// InvalidateProduct drops cached reports after stock, sales or targets change.
func (s *ForecastService) InvalidateProduct(ctx context.Context, productID int64) {
	s.invalidate(ctx, productID)
}

func (s *ForecastService) invalidate(ctx context.Context, productID int64) {
	if err := s.cache.InvalidateProduct(ctx, productID); err != nil {
		log.Warn().Err(err).Int64("product_id", productID).Msg("depletion: cache invalidate failed")
	}
}

func (s *ForecastService) productExists(ctx context.Context, productID int64) (bool, error) {
	product, err := s.repos.Products.GetProduct(ctx, productID)
	if err != nil {
		return false, err
	}
	if product == nil {
		log.Warn().Int64("product_id", productID).Msg("depletion: unknown product")
		return false, nil
	}
	return true, nil
}

func normalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}
