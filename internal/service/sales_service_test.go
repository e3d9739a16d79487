package service

import (
	"context"
	"testing"
	"time"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/andresuchdata/autopo-py/depletion/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	products []int64
}

func (r *recordingInvalidator) InvalidateProduct(ctx context.Context, productID int64) {
	r.products = append(r.products, productID)
}

func TestSalesService_RecordDailySales(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	inv := &recordingInvalidator{}
	svc := NewSalesService(store.Repositories(), inv)

	require.NoError(t, svc.RecordDailySales(ctx, []domain.DailySaleRecord{
		{ProductID: 1, Channel: "amazon", Date: testNow, UnitsSold: 3},
		{ProductID: 1, Channel: "amazon", Date: testNow.Add(time.Hour), UnitsSold: 4},
	}))

	records, err := store.GetDailySales(ctx, 1, testNow, testNow)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 4, records[0].UnitsSold)
	assert.Equal(t, day(time.October, 14), records[0].Date)
	assert.Equal(t, []int64{1}, inv.products)
}

func TestSalesService_RejectsInvalidRecords(t *testing.T) {
	svc := NewSalesService(memory.NewStore().Repositories(), nil)

	err := svc.RecordDailySales(context.Background(), []domain.DailySaleRecord{{ProductID: 0, Channel: "amazon", Date: testNow}})
	assert.ErrorIs(t, err, domain.ErrInvalidProduct)

	err = svc.RecordDailySales(context.Background(), []domain.DailySaleRecord{{ProductID: 1, Channel: "amazon", Date: testNow, UnitsSold: -1}})
	assert.ErrorIs(t, err, domain.ErrInvalidSale)

	err = svc.RecordDailySales(context.Background(), []domain.DailySaleRecord{{ProductID: 1, Date: testNow, UnitsSold: 1}})
	assert.ErrorIs(t, err, domain.ErrInvalidSale)
}

func TestSalesService_SyncStock(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	inv := &recordingInvalidator{}
	svc := NewSalesService(store.Repositories(), inv)

	require.NoError(t, svc.SyncStock(ctx, &domain.StockSnapshot{
		ProductID:  3,
		Warehouses: []domain.WarehouseStock{{Warehouse: "main", AvailableStock: 12}},
	}))
	require.NoError(t, svc.SyncStock(ctx, &domain.StockSnapshot{
		ProductID:     3,
		ChannelStocks: []domain.ChannelStock{{Channel: "amazon", CurrentStock: 5}},
	}))

	snap, err := store.GetCurrentStockTotals(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, snap.Total())
	assert.Equal(t, []int64{3, 3}, inv.products)

	assert.ErrorIs(t, svc.SyncStock(ctx, nil), domain.ErrInvalidProduct)
}
