package ingest

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-py/depletion/internal/config"
	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

const (
	EventSales = "sales"
	EventStock = "stock"

	initialRetryBackoff = time.Second
	maxRetryBackoff     = 30 * time.Second
)

// ErrMalformedEvent marks a message that can never be applied.
var ErrMalformedEvent = errors.New("malformed event")

// Recorder persists the events read from the topic.
type Recorder interface {
	RecordDailySales(ctx context.Context, records []domain.DailySaleRecord) error
	SyncStock(ctx context.Context, snapshot *domain.StockSnapshot) error
}

// Event is the envelope published by the order and inventory systems.
type Event struct {
	Type  string      `json:"type"`
	Sales []SaleEvent `json:"sales,omitempty"`
	Stock *StockEvent `json:"stock,omitempty"`
}

type SaleEvent struct {
	ProductID int64  `json:"product_id"`
	Channel   string `json:"channel"`
	Date      string `json:"date"`
	UnitsSold int    `json:"units_sold"`
}

type StockEvent struct {
	ProductID     int64                   `json:"product_id"`
	Warehouses    []domain.WarehouseStock `json:"warehouses"`
	ChannelStocks []domain.ChannelStock   `json:"channel_stocks"`
	ObservedAt    *time.Time              `json:"observed_at,omitempty"`
}

// Consumer reads sales and stock events from Kafka.
type Consumer struct {
	reader   *kafka.Reader
	recorder Recorder
	backoff  time.Duration
}

func NewConsumer(cfg config.KafkaConfig, recorder Recorder) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers must be provided")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic must be provided")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		Dialer:      newDialer(cfg.Username, cfg.Password),
	})

	return &Consumer{reader: reader, recorder: recorder, backoff: initialRetryBackoff}, nil
}

func newDialer(username, password string) *kafka.Dialer {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	if username != "" && password != "" {
		dialer.SASLMechanism = plain.Mechanism{
			Username: username,
			Password: password,
		}
		dialer.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return dialer
}

// Run consumes until ctx is cancelled. Malformed or invalid messages are
// logged and committed; storage failures are retried and the offset is not
// committed until the message is applied.
func (c *Consumer) Run(ctx context.Context) error {
	log.Info().
		Str("topic", c.reader.Config().Topic).
		Str("group_id", c.reader.Config().GroupID).
		Msg("ingest: consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			log.Warn().Err(err).Msg("ingest: fetch failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		if !c.apply(ctx, msg) {
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Int64("offset", msg.Offset).Msg("ingest: commit failed")
		}
	}
}

// apply handles msg until it is applied or rejected for good. It returns
// false when ctx ends first, leaving the message uncommitted.
func (c *Consumer) apply(ctx context.Context, msg kafka.Message) bool {
	backoff := c.backoff
	if backoff <= 0 {
		backoff = initialRetryBackoff
	}

	for {
		err := c.handle(ctx, msg.Value)
		if err == nil {
			return true
		}
		if !retryable(err) {
			log.Error().
				Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("ingest: dropping message")
			return true
		}

		log.Warn().
			Err(err).
			Int64("offset", msg.Offset).
			Dur("backoff", backoff).
			Msg("ingest: apply failed, retrying")
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}
}

// retryable reports whether err may succeed on a later attempt.
func retryable(err error) bool {
	return !errors.Is(err, ErrMalformedEvent) &&
		!errors.Is(err, domain.ErrInvalidSale) &&
		!errors.Is(err, domain.ErrInvalidProduct)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) handle(ctx context.Context, payload []byte) error {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch strings.ToLower(event.Type) {
	case EventSales:
		records := make([]domain.DailySaleRecord, 0, len(event.Sales))
		for _, s := range event.Sales {
			date, err := parseEventDate(s.Date)
			if err != nil {
				return err
			}
			records = append(records, domain.DailySaleRecord{
				ProductID: s.ProductID,
				Channel:   s.Channel,
				Date:      date,
				UnitsSold: s.UnitsSold,
			})
		}
		return c.recorder.RecordDailySales(ctx, records)
	case EventStock:
		if event.Stock == nil {
			return fmt.Errorf("%w: stock event without payload", ErrMalformedEvent)
		}
		snapshot := &domain.StockSnapshot{
			ProductID:     event.Stock.ProductID,
			Warehouses:    event.Stock.Warehouses,
			ChannelStocks: event.Stock.ChannelStocks,
		}
		if event.Stock.ObservedAt != nil {
			snapshot.ObservedAt = *event.Stock.ObservedAt
		}
		return c.recorder.SyncStock(ctx, snapshot)
	default:
		return fmt.Errorf("%w: unknown event type %q", ErrMalformedEvent, event.Type)
	}
}

func parseEventDate(raw string) (time.Time, error) {
	if t, err := time.Parse(domain.DateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid sale date %q", ErrMalformedEvent, raw)
	}
	return domain.Day(t), nil
}
