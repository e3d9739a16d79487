// Package pipeline precomputes depletion reports in bulk.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/rs/zerolog/log"
)

// ReportBuilder builds, and caches, the report of one product.
type ReportBuilder interface {
	DepletionReport(ctx context.Context, productID int64) (*domain.DepletionReport, error)
}

// ProductLister lists every product that should be warmed.
type ProductLister interface {
	ListProductIDs(ctx context.Context) ([]int64, error)
}

// WarmConfig holds configuration for a warm run
type WarmConfig struct {
	WorkerCount int
}

// DefaultWarmConfig returns sensible defaults
func DefaultWarmConfig() WarmConfig {
	return WarmConfig{WorkerCount: 4}
}

// WarmResult summarises a warm run.
type WarmResult struct {
	Products  int           `json:"products"`
	Warmed    int           `json:"warmed"`
	Failed    []int64       `json:"failed"`
	Orderable []int64       `json:"orderable"`
	Duration  time.Duration `json:"duration"`
}

// Warmer fills the report cache for every product with a worker pool.
type Warmer struct {
	reports  ReportBuilder
	products ProductLister
	config   WarmConfig
}

func NewWarmer(reports ReportBuilder, products ProductLister, config WarmConfig) *Warmer {
	if config.WorkerCount < 1 {
		config.WorkerCount = 1
	}
	return &Warmer{reports: reports, products: products, config: config}
}

// WarmAll warms every listed product.
func (w *Warmer) WarmAll(ctx context.Context) (*WarmResult, error) {
	ids, err := w.products.ListProductIDs(ctx)
	if err != nil {
		return nil, err
	}
	return w.Warm(ctx, ids)
}

// Warm builds the report of each product. A failing product is recorded and
// does not stop the run; a cancelled context does.
func (w *Warmer) Warm(ctx context.Context, productIDs []int64) (*WarmResult, error) {
	start := time.Now()
	result := &WarmResult{Products: len(productIDs), Failed: []int64{}, Orderable: []int64{}}

	jobs := make(chan int64)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for i := 0; i < w.config.WorkerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for productID := range jobs {
				report, err := w.reports.DepletionReport(ctx, productID)

				mu.Lock()
				if err != nil {
					log.Warn().Err(err).Int("worker", workerID).Int64("product_id", productID).Msg("warm: report failed")
					result.Failed = append(result.Failed, productID)
				} else {
					result.Warmed++
					if needsOrder(report) {
						result.Orderable = append(result.Orderable, productID)
					}
				}
				mu.Unlock()
			}
		}(i)
	}

	var cancelled error
enqueue:
	for _, id := range productIDs {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
			break enqueue
		case jobs <- id:
		}
	}
	close(jobs)
	wg.Wait()

	result.Duration = time.Since(start)
	if cancelled != nil {
		return result, cancelled
	}

	log.Info().
		Int("products", result.Products).
		Int("warmed", result.Warmed).
		Int("failed", len(result.Failed)).
		Int("orderable", len(result.Orderable)).
		Dur("duration", result.Duration).
		Msg("warm: completed")

	return result, nil
}

func needsOrder(report *domain.DepletionReport) bool {
	for _, e := range report.Entries {
		if e.StatusFlag == domain.StatusOrder {
			return true
		}
	}
	return false
}
