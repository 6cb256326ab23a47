// Package stream publishes synthesized events to Kafka, keyed by user so a
// user's events stay ordered within one partition.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/time/rate"

	"github.com/vanshika/quickpay/internal/config"
	"github.com/vanshika/quickpay/internal/domain"
	"github.com/vanshika/quickpay/internal/metrics"
)

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter returns a Kafka writer for cfg. Keys are hashed so every event
// of a user lands on the same partition.
func NewWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchSize:              cfg.BatchSize,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		MaxAttempts:            3,
	}
}

// Publisher sends events in batches, throttled to a number of batches per
// second.
type Publisher struct {
	writer    MessageWriter
	limiter   *rate.Limiter
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Collectors
}

// NewPublisher wraps w. A RatePerSec of zero disables throttling.
func NewPublisher(w MessageWriter, cfg config.KafkaConfig, logger *slog.Logger, m *metrics.Collectors) *Publisher {
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	size := cfg.BatchSize
	if size <= 0 {
		size = 1
	}
	return &Publisher{
		writer:    w,
		limiter:   rate.NewLimiter(limit, 1),
		batchSize: size,
		logger:    logger,
		metrics:   m,
	}
}

// PublishEvents writes events in order and returns how many were accepted
// before the first failure.
func (p *Publisher) PublishEvents(ctx context.Context, events []domain.Event) (int, error) {
	sent := 0
	for start := 0; start < len(events); start += p.batchSize {
		end := min(start+p.batchSize, len(events))

		msgs := make([]kafka.Message, 0, end-start)
		for _, e := range events[start:end] {
			msg, err := eventMessage(e)
			if err != nil {
				return sent, err
			}
			msgs = append(msgs, msg)
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return sent, err
		}
		if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
			return sent, fmt.Errorf("publish events %d-%d: %w", start, end-1, err)
		}
		sent += len(msgs)
		p.metrics.RecordsLoaded("kafka", "events", len(msgs))
		p.logger.Debug("event batch published", slog.Int("from", start), slog.Int("count", len(msgs)))
	}
	p.logger.Info("events published", slog.Int("count", sent))
	return sent, nil
}

// Close closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func eventMessage(e domain.Event) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event %s: %w", e.EventID, err)
	}
	return kafka.Message{
		Key:   []byte(e.UserID),
		Value: value,
		Time:  e.EventTimestamp,
		Headers: []kafka.Header{
			{Key: "event_name", Value: []byte(e.EventName)},
			{Key: "platform", Value: []byte(e.Platform)},
		},
	}, nil
}
