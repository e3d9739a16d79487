package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
)

type leadTimeRepository struct {
	db *DB
}

func NewLeadTimeRepository(db *DB) *leadTimeRepository {
	return &leadTimeRepository{db: db}
}

func (r *leadTimeRepository) GetLeadTimeConfig(ctx context.Context, productID int64) (*domain.LeadTimeConfig, error) {
	query := `
		SELECT product_id, local_warehouse_lead_time, reorder_lead_time
		FROM lead_times
		WHERE product_id = $1
	`

	var cfg domain.LeadTimeConfig
	if err := r.db.GetContext(ctx, &cfg, query, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lead time config: %w", err)
	}
	return &cfg, nil
}
