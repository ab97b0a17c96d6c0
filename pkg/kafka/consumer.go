// Package kafka wraps segmentio/kafka-go for the services' event topics.
// Values are JSON. A Consumer hands each message to a MessageHandler and
// commits it once handled, or once the handler has failed too often.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
	"github.com/segmentio/kafka-go"
)

type MessageHandler func(ctx context.Context, key []byte, value []byte) error

type Consumer struct {
	reader  *kafka.Reader
	handler MessageHandler
	retry   resilience.RetryConfig
	logger  *slog.Logger
}

type ConsumerOption func(*consumerSettings)

type consumerSettings struct {
	startOffset int64
	retry       resilience.RetryConfig
}

// FromFirstOffset makes a new group start at the oldest retained message
// instead of the newest.
func FromFirstOffset() ConsumerOption {
	return func(s *consumerSettings) { s.startOffset = kafka.FirstOffset }
}

// WithHandlerRetry retries a failing handler before the message is
// skipped. Without it a failing message is skipped after one attempt.
func WithHandlerRetry(cfg resilience.RetryConfig) ConsumerOption {
	return func(s *consumerSettings) { s.retry = cfg }
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	s := consumerSettings{
		startOffset: kafka.LastOffset,
		retry:       resilience.RetryConfig{MaxAttempts: 1},
	}
	for _, o := range opts {
		o(&s)
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    1,
			MaxBytes:    10e6,
			MaxWait:     500 * time.Millisecond,
			StartOffset: s.startOffset,
		}),
		handler: handler,
		retry:   s.retry,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic, "group", cfg.ConsumerGroup),
	}
}

// Start consumes until ctx is cancelled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("fetch failed", "error", err)
			continue
		}
		c.process(ctx, msg)
		if ctx.Err() != nil {
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	err := resilience.Retry(ctx, "kafka-handler", c.retry, func() error {
		return c.handler(ctx, msg.Key, msg.Value)
	})
	if err != nil && ctx.Err() == nil {
		c.logger.Error("skipping message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"error", err,
		)
		return
	}
	c.logger.Debug("message handled", "partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}

// Route dispatches on the message key. Unknown keys are logged and
// acknowledged.
func Route(handlers map[string]MessageHandler) MessageHandler {
	logger := slog.Default().With("component", "kafka-router")
	return func(ctx context.Context, key []byte, value []byte) error {
		h, ok := handlers[string(key)]
		if !ok {
			logger.Warn("no handler for message key", "key", string(key))
			return nil
		}
		return h(ctx, key, value)
	}
}
