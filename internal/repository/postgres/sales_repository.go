package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/jmoiron/sqlx"
)

type salesRepository struct {
	db *DB
}

func NewSalesRepository(db *DB) *salesRepository {
	return &salesRepository{db: db}
}

// GetDailySales returns per-channel sales for the inclusive day range.
func (r *salesRepository) GetDailySales(ctx context.Context, productID int64, from, to time.Time) ([]domain.DailySaleRecord, error) {
	query := `
		SELECT product_id, channel, sale_date, units_sold
		FROM daily_sales
		WHERE product_id = $1
			AND sale_date BETWEEN $2 AND $3
		ORDER BY sale_date, channel
	`

	var records []domain.DailySaleRecord
	if err := r.db.SelectContext(ctx, &records, query, productID, domain.Day(from), domain.Day(to)); err != nil {
		return nil, fmt.Errorf("failed to get daily sales: %w", err)
	}
	return records, nil
}

func (r *salesRepository) UpsertDailySales(ctx context.Context, records []domain.DailySaleRecord) error {
	if len(records) == 0 {
		return nil
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO daily_sales (product_id, channel, sale_date, units_sold)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (product_id, channel, sale_date)
			DO UPDATE SET units_sold = EXCLUDED.units_sold, updated_at = NOW()
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare sales upsert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			if _, err := stmt.ExecContext(ctx, rec.ProductID, rec.Channel, domain.Day(rec.Date), rec.UnitsSold); err != nil {
				return fmt.Errorf("failed to upsert sales for product %d: %w", rec.ProductID, err)
			}
		}
		return nil
	})
}
