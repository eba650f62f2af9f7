// Package events publishes recorded rate observations to Kafka.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"ratebot/internal/metrics"
)

// RateEvent is the message body published for every stored observation.
type RateEvent struct {
	Date       string    `json:"date"`
	Currency   string    `json:"currency"`
	Source     string    `json:"source"`
	Rate       float64   `json:"rate"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Key groups events of one pair onto one partition.
func (e RateEvent) Key() string {
	return e.Currency + ":" + e.Source
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes RateEvents to a single topic.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// PublishRate encodes and writes one event.
func (p *KafkaPublisher) PublishRate(ctx context.Context, ev RateEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		metrics.RateEventsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return fmt.Errorf("marshal rate event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Key()),
		Value: payload,
		Time:  ev.RecordedAt,
	})
	if err != nil {
		metrics.RateEventsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return fmt.Errorf("write rate event: %w", err)
	}
	metrics.RateEventsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	return nil
}

// Close flushes pending writes and releases the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
