package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/lib/pq"
)

type productRepository struct {
	db *DB
}

func NewProductRepository(db *DB) *productRepository {
	return &productRepository{db: db}
}

func (r *productRepository) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	query := `
		SELECT id, sku, asin, name
		FROM products
		WHERE id = $1
	`

	var p domain.Product
	if err := r.db.GetContext(ctx, &p, query, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

// ResolveSKUs maps upper-cased SKUs to product ids. Unknown SKUs are absent.
func (r *productRepository) ResolveSKUs(ctx context.Context, skus []string) (map[string]int64, error) {
	resolved := make(map[string]int64)
	if len(skus) == 0 {
		return resolved, nil
	}

	normalized := make([]string, 0, len(skus))
	for _, sku := range skus {
		if s := strings.ToUpper(strings.TrimSpace(sku)); s != "" {
			normalized = append(normalized, s)
		}
	}

	query := `
		SELECT id, UPPER(sku) AS sku
		FROM products
		WHERE UPPER(sku) = ANY($1::text[])
	`

	var rows []struct {
		ID  int64  `db:"id"`
		SKU string `db:"sku"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(normalized)); err != nil {
		return nil, fmt.Errorf("failed to resolve skus: %w", err)
	}

	for _, row := range rows {
		resolved[row.SKU] = row.ID
	}
	return resolved, nil
}

func (r *productRepository) ListProductIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM products ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return ids, nil
}

func (r *productRepository) ExistingProductIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	existing := make(map[int64]bool)
	if len(ids) == 0 {
		return existing, nil
	}

	var found []int64
	if err := r.db.SelectContext(ctx, &found, `SELECT id FROM products WHERE id = ANY($1::bigint[])`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to check products: %w", err)
	}
	for _, id := range found {
		existing[id] = true
	}
	return existing, nil
}
