package postgres

import (
	"context"
	"fmt"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/andresuchdata/autopo-py/depletion/internal/repository"
	"github.com/jmoiron/sqlx"
)

type salesTargetRepository struct {
	db *DB
}

func NewSalesTargetRepository(db *DB) *salesTargetRepository {
	return &salesTargetRepository{db: db}
}

const selectTargetsQuery = `
	SELECT id, product_id, start_date, end_date, sales_forecast, channel, upload_batch
	FROM sales_targets
	WHERE product_id = $1
	ORDER BY position, id
`

const insertTargetQuery = `
	INSERT INTO sales_targets (product_id, start_date, end_date, sales_forecast, channel, upload_batch, position)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id
`

// GetActiveForecastRanges returns the product's ranges in stored order.
func (r *salesTargetRepository) GetActiveForecastRanges(ctx context.Context, productID int64) ([]domain.SalesTarget, error) {
	var targets []domain.SalesTarget
	if err := r.db.SelectContext(ctx, &targets, selectTargetsQuery, productID); err != nil {
		return nil, fmt.Errorf("failed to get forecast ranges: %w", err)
	}
	return targets, nil
}

func (r *salesTargetRepository) ReplaceForecastRanges(ctx context.Context, productID int64, ranges []domain.SalesTarget) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockProduct(ctx, tx, productID); err != nil {
			return err
		}
		_, err := replaceTargets(ctx, tx, productID, ranges)
		return err
	})
}

// MergeForecastRanges holds a transaction-scoped advisory lock on the product
// while the merge runs, so concurrent uploads for one product serialize.
func (r *salesTargetRepository) MergeForecastRanges(ctx context.Context, productID int64, merge repository.MergeFunc) ([]domain.SalesTarget, error) {
	var stored []domain.SalesTarget
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockProduct(ctx, tx, productID); err != nil {
			return err
		}

		var existing []domain.SalesTarget
		if err := tx.SelectContext(ctx, &existing, selectTargetsQuery, productID); err != nil {
			return fmt.Errorf("failed to load forecast ranges: %w", err)
		}

		var err error
		stored, err = replaceTargets(ctx, tx, productID, merge(existing))
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func lockProduct(ctx context.Context, tx *sqlx.Tx, productID int64) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, productID); err != nil {
		return fmt.Errorf("failed to lock product %d: %w", productID, err)
	}
	return nil
}

func replaceTargets(ctx context.Context, tx *sqlx.Tx, productID int64, ranges []domain.SalesTarget) ([]domain.SalesTarget, error) {
	if _, err := tx.ExecContext(ctx, `DELETE FROM sales_targets WHERE product_id = $1`, productID); err != nil {
		return nil, fmt.Errorf("failed to clear forecast ranges: %w", err)
	}

	stored := make([]domain.SalesTarget, 0, len(ranges))
	for i, t := range ranges {
		if t.ProductID != productID {
			continue
		}
		t.StartDate = domain.Day(t.StartDate)
		t.EndDate = domain.Day(t.EndDate)

		if err := tx.QueryRowxContext(ctx, insertTargetQuery,
			productID, t.StartDate, t.EndDate, t.SalesForecast, t.Channel, t.UploadBatch, i,
		).Scan(&t.ID); err != nil {
			return nil, fmt.Errorf("failed to insert forecast range: %w", err)
		}
		stored = append(stored, t)
	}
	return stored, nil
}
