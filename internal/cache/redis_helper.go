package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/andresuchdata/autopo-py/depletion/internal/config"
	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	depletionReportKeyPrefix = "depletion:report"

	defaultReportTTL = 5 * time.Minute
	pingTimeout      = 5 * time.Second
	scanBatchSize    = 100
)

// reportStore holds JSON encoded reports under depletion:report:<product>:<day>.
type reportStore struct {
	client *redis.Client
	ttl    time.Duration
}

func connectReportStore(cfg config.CacheConfig) (*reportStore, error) {
	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &reportStore{client: client, ttl: reportTTL(cfg)}, nil
}

func reportTTL(cfg config.CacheConfig) time.Duration {
	if cfg.ReportTTLSeconds <= 0 {
		return defaultReportTTL
	}
	return time.Duration(cfg.ReportTTLSeconds) * time.Second
}

func buildRedisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opt, nil
	}

	host, port := cfg.RedisHost, cfg.RedisPort
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "6379"
	}
	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

// productKeyPrefix ends with a separator so product 1 never matches product 12.
func productKeyPrefix(productID int64) string {
	return fmt.Sprintf("%s:%d:", depletionReportKeyPrefix, productID)
}

func buildDepletionReportKey(productID int64, day time.Time) string {
	return productKeyPrefix(productID) + domain.Day(day).Format(domain.DateLayout)
}

func (s *reportStore) load(ctx context.Context, productID int64, day time.Time) (*domain.DepletionReport, bool, error) {
	payload, err := s.client.Get(ctx, buildDepletionReportKey(productID, day)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var report domain.DepletionReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, false, fmt.Errorf("decode depletion report cache: %w", err)
	}
	return &report, true, nil
}

func (s *reportStore) save(ctx context.Context, report *domain.DepletionReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode depletion report cache: %w", err)
	}
	key := buildDepletionReportKey(report.ProductID, report.GeneratedFor)
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// purge deletes every report key under prefix, one SCAN page at a time.
func (s *reportStore) purge(ctx context.Context, prefix string) error {
	iter := s.client.Scan(ctx, 0, prefix+"*", scanBatchSize).Iterator()
	batch := make([]string, 0, scanBatchSize)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatchSize {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis delete failed: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	if len(batch) > 0 {
		if err := s.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis delete failed: %w", err)
		}
	}
	return nil
}
