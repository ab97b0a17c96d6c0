package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/segmentio/kafka-go"
)

const (
	headerContentType = "content-type"
	headerProducedAt  = "produced-at"
)

// Event is one message on a topic. Key selects the partition and, for
// topics carrying several event kinds, the handler passed to Route.
type Event struct {
	Key   string
	Value any
}

// Publisher is the write side of a topic. Producer implements it; callers
// that only publish should depend on this instead.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	PublishBatch(ctx context.Context, events []Event) error
}

// Producer writes JSON events to one topic and waits for all in-sync
// replicas to acknowledge.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
	now    func() time.Time
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			MaxAttempts:  3,
			RequiredAcks: kafka.RequireAll,
		},
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
		now:    time.Now,
	}
}

func (p *Producer) Publish(ctx context.Context, event Event) error {
	return p.PublishBatch(ctx, []Event{event})
}

// PublishBatch encodes every event before writing any, so a value that
// fails to marshal leaves the topic untouched.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	messages, err := p.encode(events)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.Error("publish failed", "count", len(messages), "first_key", events[0].Key, "error", err)
		return fmt.Errorf("publishing %d event(s) to %s: %w", len(messages), p.writer.Topic, err)
	}
	p.logger.Debug("published", "count", len(messages), "first_key", events[0].Key)
	return nil
}

func (p *Producer) encode(events []Event) ([]kafka.Message, error) {
	producedAt := []byte(p.now().UTC().Format(time.RFC3339Nano))
	messages := make([]kafka.Message, len(events))
	for i, event := range events {
		value, err := json.Marshal(event.Value)
		if err != nil {
			return nil, fmt.Errorf("marshaling %q event: %w", event.Key, err)
		}
		messages[i] = kafka.Message{
			Key:   []byte(event.Key),
			Value: value,
			Headers: []kafka.Header{
				{Key: headerContentType, Value: []byte("application/json")},
				{Key: headerProducedAt, Value: producedAt},
			},
		}
	}
	return messages, nil
}

func (p *Producer) Topic() string {
	return p.writer.Topic
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	return p.writer.Close()
}
