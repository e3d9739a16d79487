package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return Wrap(sqlx.NewDb(mockDB, "postgres")), mock
}

var targetColumns = []string{"id", "product_id", "start_date", "end_date", "sales_forecast", "channel", "upload_batch"}

func TestProductRepository_GetProductMissing(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM products").WithArgs(int64(9)).WillReturnError(sql.ErrNoRows)

	p, err := NewProductRepository(db).GetProduct(context.Background(), 9)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_ListProductIDs(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT id FROM products ORDER BY id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(4)))

	ids, err := NewProductRepository(db).ListProductIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_ExistingProductIDs(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM products WHERE id = ANY").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(4)))

	existing, err := NewProductRepository(db).ExistingProductIDs(context.Background(), []int64{4, 999})
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{4: true}, existing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_ResolveSKUs(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM products").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sku"}).AddRow(3, "MUG-01"))

	resolved, err := NewProductRepository(db).ResolveSKUs(context.Background(), []string{"mug-01", "bad"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"MUG-01": 3}, resolved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockRepository_GetCurrentStockTotals(t *testing.T) {
	db, mock := newMockDB(t)
	older := time.Date(2026, 10, 13, 8, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM warehouse_stocks").WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"warehouse", "available_stock", "updated_at"}).
			AddRow("jakarta", 40, older).
			AddRow("surabaya", 20, older))
	mock.ExpectQuery("FROM channel_stocks").WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"channel", "current_stock", "updated_at"}).
			AddRow("amazon", 15, newer))

	snap, err := NewStockRepository(db).GetCurrentStockTotals(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 60, snap.WarehouseStock())
	assert.Equal(t, 75, snap.Total())
	assert.Equal(t, newer, snap.ObservedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSalesRepository_UpsertDailySales(t *testing.T) {
	db, mock := newMockDB(t)
	day := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO daily_sales")
	prep.ExpectExec().WithArgs(int64(1), "amazon", day, 4).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(int64(1), "shopify", day, 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewSalesRepository(db).UpsertDailySales(context.Background(), []domain.DailySaleRecord{
		{ProductID: 1, Channel: "amazon", Date: day.Add(5 * time.Hour), UnitsSold: 4},
		{ProductID: 1, Channel: "shopify", Date: day, UnitsSold: 2},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSalesRepository_UpsertRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	day := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO daily_sales").
		ExpectExec().WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := NewSalesRepository(db).UpsertDailySales(context.Background(), []domain.DailySaleRecord{
		{ProductID: 1, Channel: "amazon", Date: day, UnitsSold: 4},
	})
	require.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSalesTargetRepository_MergeForecastRanges(t *testing.T) {
	db, mock := newMockDB(t)
	jan1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	jan10 := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	jan15 := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM sales_targets").WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(targetColumns).AddRow(4, 1, jan1, jan10, "5.0000", nil, "b1"))
	mock.ExpectExec("DELETE FROM sales_targets").WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO sales_targets").
		WithArgs(int64(1), jan1, jan15, sqlmock.AnyArg(), nil, "b2", 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectCommit()

	stored, err := NewSalesTargetRepository(db).MergeForecastRanges(context.Background(), 1,
		func(existing []domain.SalesTarget) []domain.SalesTarget {
			require.Len(t, existing, 1)
			assert.True(t, existing[0].SalesForecast.Equal(decimal.NewFromInt(5)))
			return []domain.SalesTarget{{ProductID: 1, StartDate: jan1, EndDate: jan15, SalesForecast: decimal.NewFromInt(8), UploadBatch: "b2"}}
		})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, int64(5), stored[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadTimeRepository_Missing(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM lead_times").WithArgs(int64(2)).WillReturnError(sql.ErrNoRows)

	cfg, err := NewLeadTimeRepository(db).GetLeadTimeConfig(context.Background(), 2)
	require.NoError(t, err)
	assert.Nil(t, cfg)
	assert.NoError(t, mock.ExpectationsWereMet())
}
