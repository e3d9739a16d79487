package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/jmoiron/sqlx"
)

type stockRepository struct {
	db *DB
}

func NewStockRepository(db *DB) *stockRepository {
	return &stockRepository{db: db}
}

type warehouseStockRow struct {
	domain.WarehouseStock
	UpdatedAt time.Time `db:"updated_at"`
}

type channelStockRow struct {
	domain.ChannelStock
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *stockRepository) GetCurrentStockTotals(ctx context.Context, productID int64) (*domain.StockSnapshot, error) {
	snapshot := &domain.StockSnapshot{ProductID: productID}

	var warehouses []warehouseStockRow
	err := r.db.SelectContext(ctx, &warehouses, `
		SELECT warehouse, COALESCE(available_stock, 0) AS available_stock, updated_at
		FROM warehouse_stocks
		WHERE product_id = $1
		ORDER BY warehouse
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get warehouse stock: %w", err)
	}

	var channels []channelStockRow
	err = r.db.SelectContext(ctx, &channels, `
		SELECT channel, COALESCE(current_stock, 0) AS current_stock, updated_at
		FROM channel_stocks
		WHERE product_id = $1
		ORDER BY channel
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel stock: %w", err)
	}

	for _, w := range warehouses {
		snapshot.Warehouses = append(snapshot.Warehouses, w.WarehouseStock)
		if w.UpdatedAt.After(snapshot.ObservedAt) {
			snapshot.ObservedAt = w.UpdatedAt
		}
	}
	for _, c := range channels {
		snapshot.ChannelStocks = append(snapshot.ChannelStocks, c.ChannelStock)
		if c.UpdatedAt.After(snapshot.ObservedAt) {
			snapshot.ObservedAt = c.UpdatedAt
		}
	}

	return snapshot, nil
}

// SaveSnapshot overwrites the product's stock rows with the snapshot.
func (r *stockRepository) SaveSnapshot(ctx context.Context, snapshot *domain.StockSnapshot) error {
	observedAt := snapshot.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now()
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM warehouse_stocks WHERE product_id = $1`, snapshot.ProductID); err != nil {
			return fmt.Errorf("failed to clear warehouse stock: %w", err)
		}
		for _, w := range snapshot.Warehouses {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO warehouse_stocks (product_id, warehouse, available_stock, updated_at)
				VALUES ($1, $2, $3, $4)
			`, snapshot.ProductID, w.Warehouse, w.AvailableStock, observedAt)
			if err != nil {
				return fmt.Errorf("failed to insert warehouse stock: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM channel_stocks WHERE product_id = $1`, snapshot.ProductID); err != nil {
			return fmt.Errorf("failed to clear channel stock: %w", err)
		}
		for _, c := range snapshot.ChannelStocks {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO channel_stocks (product_id, channel, current_stock, updated_at)
				VALUES ($1, $2, $3, $4)
			`, snapshot.ProductID, c.Channel, c.CurrentStock, observedAt)
			if err != nil {
				return fmt.Errorf("failed to insert channel stock: %w", err)
			}
		}

		return nil
	})
}
