package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/andresuchdata/autopo-py/depletion/internal/repository"
)

type saleKey struct {
	productID int64
	channel   string
	day       string
}

// Store provides in-memory storage for every repository interface.
type Store struct {
	mu        sync.RWMutex
	products  map[int64]domain.Product
	snapshots map[int64]domain.StockSnapshot
	sales     map[saleKey]domain.DailySaleRecord
	targets   map[int64][]domain.SalesTarget
	leadTimes map[int64]domain.LeadTimeConfig
	nextID    int64
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		products:  make(map[int64]domain.Product),
		snapshots: make(map[int64]domain.StockSnapshot),
		sales:     make(map[saleKey]domain.DailySaleRecord),
		targets:   make(map[int64][]domain.SalesTarget),
		leadTimes: make(map[int64]domain.LeadTimeConfig),
	}
}

// Verify interface compliance
var (
	_ repository.ProductRepository     = (*Store)(nil)
	_ repository.StockRepository       = (*Store)(nil)
	_ repository.SalesRepository       = (*Store)(nil)
	_ repository.SalesTargetRepository = (*Store)(nil)
	_ repository.LeadTimeRepository    = (*Store)(nil)
)

// Repositories exposes the store through every repository interface.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Products:  s,
		Stock:     s,
		Sales:     s,
		Targets:   s,
		LeadTimes: s,
	}
}

// AddProduct registers a product
func (s *Store) AddProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// SetLeadTime stores an explicit lead-time config for a product
func (s *Store) SetLeadTime(cfg domain.LeadTimeConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leadTimes[cfg.ProductID] = cfg
}

func (s *Store) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) ResolveSKUs(ctx context.Context, skus []string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(skus))
	for _, sku := range skus {
		wanted[strings.ToUpper(strings.TrimSpace(sku))] = struct{}{}
	}

	resolved := make(map[string]int64)
	for _, p := range s.products {
		key := strings.ToUpper(p.SKU)
		if _, ok := wanted[key]; ok {
			resolved[key] = p.ID
		}
	}
	return resolved, nil
}

func (s *Store) ListProductIDs(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.products))
	for id := range s.products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) ExistingProductIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	existing := make(map[int64]bool)
	for _, id := range ids {
		if _, ok := s.products[id]; ok {
			existing[id] = true
		}
	}
	return existing, nil
}

func (s *Store) GetCurrentStockTotals(ctx context.Context, productID int64) (*domain.StockSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[productID]
	if !ok {
		return &domain.StockSnapshot{ProductID: productID}, nil
	}
	snap.Warehouses = append([]domain.WarehouseStock(nil), snap.Warehouses...)
	snap.ChannelStocks = append([]domain.ChannelStock(nil), snap.ChannelStocks...)
	return &snap, nil
}

func (s *Store) SaveSnapshot(ctx context.Context, snapshot *domain.StockSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := *snapshot
	snap.Warehouses = append([]domain.WarehouseStock(nil), snapshot.Warehouses...)
	snap.ChannelStocks = append([]domain.ChannelStock(nil), snapshot.ChannelStocks...)
	s.snapshots[snapshot.ProductID] = snap
	return nil
}

func (s *Store) GetDailySales(ctx context.Context, productID int64, from, to time.Time) ([]domain.DailySaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from, to = domain.Day(from), domain.Day(to)
	var records []domain.DailySaleRecord
	for key, rec := range s.sales {
		if key.productID != productID {
			continue
		}
		day := domain.Day(rec.Date)
		if day.Before(from) || day.After(to) {
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		return records[i].Channel < records[j].Channel
	})
	return records, nil
}

func (s *Store) UpsertDailySales(ctx context.Context, records []domain.DailySaleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		rec.Date = domain.Day(rec.Date)
		s.sales[saleKey{productID: rec.ProductID, channel: rec.Channel, day: rec.Date.Format(domain.DateLayout)}] = rec
	}
	return nil
}

func (s *Store) GetActiveForecastRanges(ctx context.Context, productID int64) ([]domain.SalesTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.SalesTarget(nil), s.targets[productID]...), nil
}

func (s *Store) ReplaceForecastRanges(ctx context.Context, productID int64, ranges []domain.SalesTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.replaceLocked(productID, ranges)
	return nil
}

func (s *Store) MergeForecastRanges(ctx context.Context, productID int64, merge repository.MergeFunc) ([]domain.SalesTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := append([]domain.SalesTarget(nil), s.targets[productID]...)
	s.replaceLocked(productID, merge(existing))
	return append([]domain.SalesTarget(nil), s.targets[productID]...), nil
}

func (s *Store) replaceLocked(productID int64, ranges []domain.SalesTarget) {
	stored := make([]domain.SalesTarget, 0, len(ranges))
	for _, r := range ranges {
		if r.ProductID != productID {
			continue
		}
		if r.ID == 0 {
			s.nextID++
			r.ID = s.nextID
		}
		r.StartDate = domain.Day(r.StartDate)
		r.EndDate = domain.Day(r.EndDate)
		stored = append(stored, r)
	}
	s.targets[productID] = stored
}

func (s *Store) GetLeadTimeConfig(ctx context.Context, productID int64) (*domain.LeadTimeConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.leadTimes[productID]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}
