// Package events emits tale lifecycle events to Kafka for the external
// notification fan-out and any downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/DHvyas/votales-api/pkg/metrics"
	"github.com/DHvyas/votales-api/pkg/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// TaleEvent represents a tale lifecycle event
type TaleEvent struct {
	EventType string    `json:"event_type"` // tale.root_created, tale.branch_created, tale.voted, tale.deleted
	TaleID    string    `json:"tale_id"`
	RootID    string    `json:"root_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FeedbackEvent represents a submitted feedback item for the outbound sink
type FeedbackEvent struct {
	EventType string    `json:"event_type"` // feedback.submitted
	ID        string    `json:"id"`
	UserEmail string    `json:"user_email"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// PublishTaleEvent publishes a tale lifecycle event. Keyed by root ID so all
// events of one story tree land on the same partition in order.
func (p *Producer) PublishTaleEvent(ctx context.Context, eventType string, taleID string, rootID string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Producer.PublishTaleEvent")
	defer span.End()

	event := TaleEvent{
		EventType: eventType,
		TaleID:    taleID,
		RootID:    rootID,
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	key := rootID
	if key == "" {
		key = taleID
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.RecordKafkaPublish(p.topic, "error")
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish tale event")
		return err
	}
	metrics.RecordKafkaPublish(p.topic, "success")

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": eventType,
		"tale_id":    taleID,
	}).Debug("Published tale event")

	return nil
}

// PublishFeedbackEvent publishes a feedback submission for the email sink
func (p *Producer) PublishFeedbackEvent(ctx context.Context, event *FeedbackEvent) error {
	ctx, span := tracing.StartSpan(ctx, "events.Producer.PublishFeedbackEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.ID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.RecordKafkaPublish(p.topic, "error")
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish feedback event")
		return err
	}
	metrics.RecordKafkaPublish(p.topic, "success")

	return nil
}
