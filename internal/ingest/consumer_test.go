package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/andresuchdata/autopo-py/depletion/internal/config"
	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	sales     []domain.DailySaleRecord
	snapshots []*domain.StockSnapshot
	// errs are returned by successive RecordDailySales calls
	errs  []error
	calls int
}

func (f *fakeRecorder) RecordDailySales(ctx context.Context, records []domain.DailySaleRecord) error {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return err
		}
	}
	f.sales = append(f.sales, records...)
	return nil
}

func (f *fakeRecorder) SyncStock(ctx context.Context, snapshot *domain.StockSnapshot) error {
	f.snapshots = append(f.snapshots, snapshot)
	return nil
}

func TestConsumer_HandleSales(t *testing.T) {
	rec := &fakeRecorder{}
	c := &Consumer{recorder: rec}

	err := c.handle(context.Background(), []byte(`{
		"type": "sales",
		"sales": [
			{"product_id": 1, "channel": "amazon", "date": "2026-10-14", "units_sold": 3},
			{"product_id": 1, "channel": "shopify", "date": "2026-10-13T22:10:00Z", "units_sold": 2}
		]
	}`))
	require.NoError(t, err)
	require.Len(t, rec.sales, 2)
	assert.Equal(t, time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), rec.sales[0].Date)
	assert.Equal(t, time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC), rec.sales[1].Date)
	assert.Equal(t, 2, rec.sales[1].UnitsSold)
}

func TestConsumer_HandleStock(t *testing.T) {
	rec := &fakeRecorder{}
	c := &Consumer{recorder: rec}

	err := c.handle(context.Background(), []byte(`{
		"type": "STOCK",
		"stock": {
			"product_id": 4,
			"warehouses": [{"warehouse": "main", "available_stock": 30}],
			"channel_stocks": [{"channel": "amazon", "current_stock": 12}]
		}
	}`))
	require.NoError(t, err)
	require.Len(t, rec.snapshots, 1)
	assert.Equal(t, int64(4), rec.snapshots[0].ProductID)
	assert.Equal(t, 42, rec.snapshots[0].Total())
}

func TestConsumer_HandleRejectsBadEvents(t *testing.T) {
	c := &Consumer{recorder: &fakeRecorder{}}

	tests := []struct {
		name    string
		payload string
	}{
		{name: "malformed", payload: `{`},
		{name: "unknown_type", payload: `{"type": "refund"}`},
		{name: "bad_date", payload: `{"type": "sales", "sales": [{"product_id": 1, "date": "14/10/2026"}]}`},
		{name: "empty_stock", payload: `{"type": "stock"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.handle(context.Background(), []byte(tt.payload))
			assert.ErrorIs(t, err, ErrMalformedEvent)
			assert.False(t, retryable(err))
		})
	}
}

var salesPayload = []byte(`{"type": "sales", "sales": [{"product_id": 1, "channel": "amazon", "date": "2026-10-14", "units_sold": 3}]}`)

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(errors.New("connection refused")))
	assert.False(t, retryable(fmt.Errorf("record 0: %w", domain.ErrInvalidSale)))
	assert.False(t, retryable(domain.ErrInvalidProduct))
	assert.False(t, retryable(fmt.Errorf("%w: bad", ErrMalformedEvent)))
}

func TestConsumer_ApplyRetriesStorageFailures(t *testing.T) {
	rec := &fakeRecorder{errs: []error{errors.New("db down"), errors.New("db down")}}
	c := &Consumer{recorder: rec, backoff: time.Millisecond}

	assert.True(t, c.apply(context.Background(), kafka.Message{Value: salesPayload}))
	assert.Equal(t, 3, rec.calls)
	require.Len(t, rec.sales, 1)
}

func TestConsumer_ApplyDropsInvalidRecords(t *testing.T) {
	rec := &fakeRecorder{errs: []error{fmt.Errorf("record 0: %w", domain.ErrInvalidSale)}}
	c := &Consumer{recorder: rec, backoff: time.Millisecond}

	assert.True(t, c.apply(context.Background(), kafka.Message{Value: salesPayload}))
	assert.Equal(t, 1, rec.calls)
	assert.Empty(t, rec.sales)
}

func TestConsumer_ApplyStopsWithoutCommitOnCancel(t *testing.T) {
	errs := make([]error, 100)
	for i := range errs {
		errs[i] = errors.New("db down")
	}
	rec := &fakeRecorder{errs: errs}
	c := &Consumer{recorder: rec, backoff: 5 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.False(t, c.apply(ctx, kafka.Message{Value: salesPayload}))
	assert.Empty(t, rec.sales)
}

func TestNewConsumer_Validates(t *testing.T) {
	_, err := NewConsumer(config.KafkaConfig{Topic: "sales-events"}, &fakeRecorder{})
	assert.Error(t, err)

	_, err = NewConsumer(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, &fakeRecorder{})
	assert.Error(t, err)
}

func TestNewDialer_EnablesSASL(t *testing.T) {
	assert.Nil(t, newDialer("", "").SASLMechanism)

	d := newDialer("svc", "secret")
	require.NotNil(t, d.SASLMechanism)
	assert.Equal(t, "PLAIN", d.SASLMechanism.Name())
	assert.NotNil(t, d.TLS)
}
