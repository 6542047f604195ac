package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/carebook/carebook/libs/kafkax"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Topics for reservation lifecycle events. Messages are keyed by
// appointment id so one slot's events land on one partition in order.
const (
	TopicAvailabilityCreated = "reservation.availability.created.v1"
	TopicSlotReserved        = "reservation.slot.reserved.v1"
	TopicSlotConfirmed       = "reservation.slot.confirmed.v1"
)

// Publisher emits lifecycle events. Publishing is best effort; failures
// are logged and never bubble up to the request path.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any)
	Close() error
}

type kafkaPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewKafka returns a publisher writing to the given brokers, or a no-op
// publisher when the broker list is empty.
func NewKafka(brokersRaw string, logger *slog.Logger) Publisher {
	brokers := kafkax.SplitBrokers(brokersRaw)
	if len(brokers) == 0 {
		logger.Warn("event publishing disabled (no kafka brokers configured)")
		return nopPublisher{}
	}
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	})
	return &kafkaPublisher{writer: writer, logger: logger}
}

func (p *kafkaPublisher) Publish(ctx context.Context, topic, key string, payload any) {
	value, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("event payload marshal failed", "topic", topic, "err", err)
		return
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(uuid.NewString())},
			{Key: "event_type", Value: []byte(topic)},
		},
	}
	msg.Headers = kafkax.InjectTraceHeaders(ctx, msg.Headers)
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("event publish failed", "topic", topic, "key", key, "err", err)
	}
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, string, any) {}

func (nopPublisher) Close() error { return nil }
