package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/storm-data-shared/retry"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	maxAttempts    = 3
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces each refreshed batch of earthquakes to a Kafka topic.
// It implements store.Publisher.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish serializes events and writes them in a single WriteMessages call.
// Transient write failures are retried with exponential backoff.
func (p *Publisher) Publish(ctx context.Context, events []domain.Event, fetchedAt time.Time) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i], fetchedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}

	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = p.writer.WriteMessages(ctx, msgs...); err == nil {
			return nil
		}
		if attempt == maxAttempts || ctx.Err() != nil {
			break
		}
		p.logger.Warn("kafka write failed, retrying",
			"error", err,
			"attempt", attempt,
			"backoff", backoff,
		)
		if !retry.SleepWithContext(ctx, backoff) {
			break
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	return fmt.Errorf("publish %d events: %w", len(msgs), err)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an Event into a Kafka message keyed by its id.
func serializeToMessage(event domain.Event, fetchedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize earthquake event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "tier", Value: []byte(event.Tier().String())},
			{Key: "fetched_at", Value: []byte(fetchedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
