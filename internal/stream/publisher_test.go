package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/quickpay/internal/config"
	"github.com/vanshika/quickpay/internal/domain"
	"github.com/vanshika/quickpay/internal/logging"
	"github.com/vanshika/quickpay/internal/metrics"
)

type recordingWriter struct {
	batches [][]kafka.Message
	failOn  int
	closed  bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.failOn > 0 && len(w.batches)+1 == w.failOn {
		return errors.New("broker unavailable")
	}
	w.batches = append(w.batches, msgs)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func events(n int) []domain.Event {
	ts := time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)
	out := make([]domain.Event, n)
	for i := range out {
		out[i] = domain.Event{
			EventID:        fmt.Sprintf("e%d", i),
			EventName:      domain.EventScreenViewed,
			EventTimestamp: ts.Add(time.Duration(i) * time.Second),
			UserID:         fmt.Sprintf("u%d", i%3),
			Platform:       domain.PlatformAndroid,
			Properties:     map[string]any{"screen_name": "home"},
		}
	}
	return out
}

func TestPublishEventsBatchesAndKeys(t *testing.T) {
	w := &recordingWriter{}
	p := NewPublisher(w, config.KafkaConfig{BatchSize: 4}, logging.Discard(), metrics.New())

	sent, err := p.PublishEvents(context.Background(), events(10))
	require.NoError(t, err)
	assert.Equal(t, 10, sent)
	require.Len(t, w.batches, 3)
	assert.Len(t, w.batches[2], 2)

	msg := w.batches[0][1]
	assert.Equal(t, "u1", string(msg.Key))
	assert.Equal(t, time.Date(2025, 12, 1, 9, 0, 1, 0, time.UTC), msg.Time)
	assert.Equal(t, kafka.Header{Key: "event_name", Value: []byte(domain.EventScreenViewed)}, msg.Headers[0])

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "e1", decoded.EventID)
	assert.Equal(t, "home", decoded.Properties["screen_name"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishEventsStopsAtFirstFailure(t *testing.T) {
	w := &recordingWriter{failOn: 2}
	p := NewPublisher(w, config.KafkaConfig{BatchSize: 5}, logging.Discard(), nil)

	sent, err := p.PublishEvents(context.Background(), events(12))
	require.Error(t, err)
	assert.Equal(t, 5, sent)
	assert.Contains(t, err.Error(), "publish events 5-9")
}

func TestPublishEventsHonoursCancellation(t *testing.T) {
	w := &recordingWriter{}
	p := NewPublisher(w, config.KafkaConfig{BatchSize: 1, RatePerSec: 0.001}, logging.Discard(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	sent, err := p.PublishEvents(ctx, events(3))
	require.Error(t, err)
	assert.Equal(t, 1, sent)
}

func TestNewWriter(t *testing.T) {
	w := NewWriter(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "quickpay.events", BatchSize: 100})
	assert.Equal(t, "quickpay.events", w.Topic)
	assert.Equal(t, 100, w.BatchSize)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}
