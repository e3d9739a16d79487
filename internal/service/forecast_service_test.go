package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/andresuchdata/autopo-py/depletion/internal/config"
	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/andresuchdata/autopo-py/depletion/internal/repository"
	"github.com/andresuchdata/autopo-py/depletion/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

func day(month time.Month, d int) time.Time {
	return time.Date(2026, month, d, 0, 0, 0, 0, time.UTC)
}

func testForecastConfig() config.ForecastConfig {
	return config.ForecastConfig{
		PastWindowDays:         14,
		HorizonDays:            10,
		DefaultDailyForecast:   5,
		AlertMultiplier:        1,
		OrderMultiplier:        1,
		LocalWarehouseLeadTime: 2,
		ReorderLeadTime:        6,
	}
}

// countingCache records calls and serves what was stored.
type countingCache struct {
	mu          sync.Mutex
	reports     map[int64]*domain.DepletionReport
	hits        int
	sets        int
	invalidated []int64
}

func newCountingCache() *countingCache {
	return &countingCache{reports: make(map[int64]*domain.DepletionReport)}
}

func (c *countingCache) GetReport(ctx context.Context, productID int64, d time.Time) (*domain.DepletionReport, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.reports[productID]
	if ok {
		c.hits++
	}
	return r, ok, nil
}

func (c *countingCache) SetReport(ctx context.Context, report *domain.DepletionReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.reports[report.ProductID] = report
	return nil
}

func (c *countingCache) InvalidateProduct(ctx context.Context, productID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, productID)
	delete(c.reports, productID)
	return nil
}

func (c *countingCache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = make(map[int64]*domain.DepletionReport)
	return nil
}

func newTestForecastService(t *testing.T) (*ForecastService, *memory.Store, *countingCache) {
	t.Helper()
	store := memory.NewStore()
	store.AddProduct(domain.Product{ID: 1, SKU: "MUG-01", Name: "Mug"})
	store.AddProduct(domain.Product{ID: 2, SKU: "MUG-02", Name: "Mug XL"})
	c := newCountingCache()
	svc := NewForecastService(store.Repositories(), c, testForecastConfig()).WithClock(func() time.Time { return testNow })
	return svc, store, c
}

func TestForecastService_PastSales(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestForecastService(t)

	require.NoError(t, store.SaveSnapshot(ctx, &domain.StockSnapshot{
		ProductID:     1,
		Warehouses:    []domain.WarehouseStock{{Warehouse: "main", AvailableStock: 80}},
		ChannelStocks: []domain.ChannelStock{{Channel: "amazon", CurrentStock: 20}},
	}))
	require.NoError(t, store.UpsertDailySales(ctx, []domain.DailySaleRecord{
		{ProductID: 1, Channel: "amazon", Date: day(time.October, 14), UnitsSold: 6},
		{ProductID: 1, Channel: "shopify", Date: day(time.October, 14), UnitsSold: 4},
		{ProductID: 1, Channel: "amazon", Date: day(time.October, 13), UnitsSold: 5},
		{ProductID: 1, Channel: "amazon", Date: day(time.September, 1), UnitsSold: 99},
	}))

	past, err := svc.PastSales(ctx, 1)
	require.NoError(t, err)
	require.Len(t, past, 14)

	last := past[len(past)-1]
	assert.Equal(t, day(time.October, 14), last.Date)
	assert.Equal(t, 10, last.UnitsSold)
	assert.Equal(t, 90, last.RemainingStock)
	assert.Equal(t, 100, past[len(past)-2].RemainingStock)
	assert.Equal(t, 105, past[len(past)-3].RemainingStock)
	assert.Equal(t, day(time.October, 1), past[0].Date)
}

func TestForecastService_UnknownProductIsEmpty(t *testing.T) {
	ctx := context.Background()
	svc, _, c := newTestForecastService(t)

	past, err := svc.PastSales(ctx, 404)
	require.NoError(t, err)
	assert.Empty(t, past)

	report, err := svc.DepletionReport(ctx, 404)
	require.NoError(t, err)
	assert.Empty(t, report.Entries)
	assert.Equal(t, 0, c.sets)
}

func TestForecastService_DepletionReport(t *testing.T) {
	ctx := context.Background()
	svc, store, c := newTestForecastService(t)

	require.NoError(t, store.SaveSnapshot(ctx, &domain.StockSnapshot{
		ProductID:  1,
		Warehouses: []domain.WarehouseStock{{Warehouse: "main", AvailableStock: 70}},
	}))
	require.NoError(t, store.ReplaceForecastRanges(ctx, 1, []domain.SalesTarget{
		{ProductID: 1, StartDate: day(time.October, 14), EndDate: day(time.October, 18), SalesForecast: decimal.NewFromInt(10)},
	}))

	report, err := svc.DepletionReport(ctx, 1)
	require.NoError(t, err)
	require.Len(t, report.Entries, 10)
	assert.Equal(t, 70, report.CurrentStock)
	assert.True(t, report.AverageDailyForecast.Equal(decimal.RequireFromString("7.5")))
	assert.True(t, report.AlertThreshold.Equal(decimal.NewFromInt(45)))
	assert.True(t, report.OrderThreshold.Equal(decimal.NewFromInt(15)))
	require.NotNil(t, report.DepletionDate)
	assert.Equal(t, day(time.October, 22), *report.DepletionDate)
	assert.Equal(t, domain.LeadTimeConfig{ProductID: 1, LocalWarehouseLeadTime: 2, ReorderLeadTime: 6}, report.LeadTime)

	_, err = svc.DepletionReport(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, c.hits)
	assert.Equal(t, 1, c.sets)
}

func TestForecastService_DepletionReportUsesProductLeadTime(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestForecastService(t)
	store.SetLeadTime(domain.LeadTimeConfig{ProductID: 2, LocalWarehouseLeadTime: 1, ReorderLeadTime: 3})

	report, err := svc.DepletionReport(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, report.LeadTime.ReorderLeadTime)
	assert.True(t, report.AlertThreshold.Equal(decimal.NewFromInt(15)))
	assert.True(t, report.Entries[0].FromDefault)
}

func TestForecastService_DepletionReportPage(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestForecastService(t)
	require.NoError(t, store.SaveSnapshot(ctx, &domain.StockSnapshot{
		ProductID:  1,
		Warehouses: []domain.WarehouseStock{{Warehouse: "main", AvailableStock: 70}},
	}))

	// Default forecast 5/day: remaining runs 65 down to 20, alert below 30.
	alert := domain.StatusAlert
	page, err := svc.DepletionReportPage(ctx, 1, domain.ReportFilter{Status: &alert, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, domain.StatusAlert, page.Items[0].StatusFlag)
	assert.True(t, page.Items[0].RemainingStock.Equal(decimal.NewFromInt(25)))
}

func TestForecastService_SaveForecastRanges(t *testing.T) {
	ctx := context.Background()
	svc, _, c := newTestForecastService(t)

	result, err := svc.SaveForecastRanges(ctx, 1, []domain.SalesTarget{
		{StartDate: day(time.January, 1), EndDate: day(time.January, 10), SalesForecast: decimal.NewFromInt(5)},
		{StartDate: day(time.January, 5), EndDate: day(time.January, 15), SalesForecast: decimal.NewFromInt(8)},
		{StartDate: day(time.February, 3), EndDate: day(time.February, 1), SalesForecast: decimal.NewFromInt(1)},
	})
	require.NoError(t, err)
	require.Len(t, result.Targets, 1)
	assert.Equal(t, int64(1), result.Targets[0].ProductID)
	assert.NotZero(t, result.Targets[0].ID)
	assert.Equal(t, 1, result.Replaced)
	assert.Equal(t, 1, result.Dropped)
	assert.Contains(t, c.invalidated, int64(1))

	_, err = svc.SaveForecastRanges(ctx, 0, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidProduct)
}

func TestForecastService_ImportForecastRows(t *testing.T) {
	ctx := context.Background()
	svc, store, c := newTestForecastService(t)
	require.NoError(t, store.ReplaceForecastRanges(ctx, 1, []domain.SalesTarget{
		{ProductID: 1, StartDate: day(time.January, 1), EndDate: day(time.January, 10), SalesForecast: decimal.NewFromInt(5)},
		{ProductID: 1, StartDate: day(time.March, 1), EndDate: day(time.March, 31), SalesForecast: decimal.NewFromInt(2)},
	}))

	result, err := svc.ImportForecastRows(ctx, []domain.ForecastRow{
		{Row: 1, SKU: "mug-01", StartDate: day(time.January, 5), EndDate: day(time.January, 15), Forecast: decimal.NewFromInt(8)},
		{Row: 2, SKU: "NOPE", StartDate: day(time.January, 1), EndDate: day(time.January, 2), Forecast: decimal.NewFromInt(1)},
		{Row: 3, SKU: "MUG-02", StartDate: day(time.January, 9), EndDate: day(time.January, 2), Forecast: decimal.NewFromInt(1)},
		{Row: 4, ProductID: 2, StartDate: day(time.April, 1), EndDate: day(time.April, 30), Forecast: decimal.NewFromInt(3)},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.BatchID)
	assert.Equal(t, 4, result.Rows)
	assert.Equal(t, 2, result.Products)
	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 1, result.Replaced)
	assert.Equal(t, 1, result.Dropped)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, domain.RowError{Row: 2, Field: "sku", Message: `unknown sku "NOPE"`}, result.Errors[0])
	assert.ElementsMatch(t, []int64{1, 2}, c.invalidated)

	stored, err := svc.ForecastRanges(ctx, 1)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, day(time.January, 5), stored[0].StartDate)
	assert.True(t, stored[0].SalesForecast.Equal(decimal.NewFromInt(8)))
	assert.Equal(t, result.BatchID, stored[0].UploadBatch)
	assert.Equal(t, day(time.March, 1), stored[1].StartDate)

	stored, err = svc.ForecastRanges(ctx, 2)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, day(time.April, 1), stored[0].StartDate)
}

type failingTargets struct {
	repository.SalesTargetRepository
	err error
}

func (f failingTargets) MergeForecastRanges(ctx context.Context, productID int64, merge repository.MergeFunc) ([]domain.SalesTarget, error) {
	return nil, f.err
}

func TestForecastService_ImportPropagatesStorageFailure(t *testing.T) {
	store := memory.NewStore()
	store.AddProduct(domain.Product{ID: 1, SKU: "MUG-01"})
	boom := errors.New("connection reset")

	repos := store.Repositories()
	repos.Targets = failingTargets{SalesTargetRepository: store, err: boom}
	svc := NewForecastService(repos, nil, testForecastConfig())

	_, err := svc.ImportForecastRows(context.Background(), []domain.ForecastRow{
		{Row: 1, SKU: "MUG-01", StartDate: day(time.January, 1), EndDate: day(time.January, 3), Forecast: decimal.NewFromInt(1)},
	})
	assert.ErrorIs(t, err, boom)
}

func TestForecastService_ImportReportsUnknownProductID(t *testing.T) {
	ctx := context.Background()
	svc, _, c := newTestForecastService(t)

	result, err := svc.ImportForecastRows(ctx, []domain.ForecastRow{
		{Row: 1, ProductID: 999, StartDate: day(time.January, 1), EndDate: day(time.January, 5), Forecast: decimal.NewFromInt(4)},
		{Row: 2, ProductID: 1, StartDate: day(time.January, 1), EndDate: day(time.January, 5), Forecast: decimal.NewFromInt(4)},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Products)
	assert.Equal(t, 1, result.Accepted)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, domain.RowError{Row: 1, Field: "product_id", Message: "unknown product 999"}, result.Errors[0])
	assert.Equal(t, []int64{1}, c.invalidated)

	stored, err := svc.ForecastRanges(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

// selectiveTargets fails merges for one product only.
type selectiveTargets struct {
	repository.SalesTargetRepository
	failFor int64
	err     error
}

func (f selectiveTargets) MergeForecastRanges(ctx context.Context, productID int64, merge repository.MergeFunc) ([]domain.SalesTarget, error) {
	if productID == f.failFor {
		return nil, f.err
	}
	return f.SalesTargetRepository.MergeForecastRanges(ctx, productID, merge)
}

func TestForecastService_ImportInvalidatesCommittedProductsOnFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.AddProduct(domain.Product{ID: 1, SKU: "MUG-01"})
	store.AddProduct(domain.Product{ID: 2, SKU: "MUG-02"})
	boom := errors.New("fk violation")

	repos := store.Repositories()
	repos.Targets = selectiveTargets{SalesTargetRepository: store, failFor: 2, err: boom}
	c := newCountingCache()
	svc := NewForecastService(repos, c, testForecastConfig())

	_, err := svc.ImportForecastRows(ctx, []domain.ForecastRow{
		{Row: 1, ProductID: 1, StartDate: day(time.January, 1), EndDate: day(time.January, 3), Forecast: decimal.NewFromInt(1)},
		{Row: 2, ProductID: 2, StartDate: day(time.January, 1), EndDate: day(time.January, 3), Forecast: decimal.NewFromInt(1)},
	})
	assert.ErrorIs(t, err, boom)

	stored, err := store.GetActiveForecastRanges(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	assert.Equal(t, []int64{1}, c.invalidated)
}
