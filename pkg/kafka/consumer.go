// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. The producer serialises events as JSON, while the
// consumer decodes them via a pluggable MessageHandler callback.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/config"
)

// EventTypeHeader carries Event.Type on the wire.
const EventTypeHeader = "event-type"

// Message is a decoded Kafka record handed to a MessageHandler.
type Message struct {
	Key       []byte
	Value     []byte
	Type      string
	Partition int
	Offset    int64
}

// MessageHandler is a callback invoked for each Kafka message.
type MessageHandler func(ctx context.Context, msg Message) error

// MessageReader is the subset of *kafka.Reader used by Consumer.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler.
type Consumer struct {
	reader  MessageReader
	logger  *slog.Logger
	handler MessageHandler
}

// ConsumerOption adjusts the reader configuration.
type ConsumerOption func(*kafka.ReaderConfig)

// FromBeginning starts a consumer group without committed offsets at the
// oldest retained message instead of the newest.
func FromBeginning() ConsumerOption {
	return func(rc *kafka.ReaderConfig) { rc.StartOffset = kafka.FirstOffset }
}

// WithGroup overrides the consumer group from the config.
func WithGroup(group string) ConsumerOption {
	return func(rc *kafka.ReaderConfig) { rc.GroupID = group }
}

// NewConsumer creates a Consumer for the given topic and handler.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	rc := kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	}
	for _, opt := range opts {
		opt(&rc)
	}
	return NewConsumerWithReader(kafka.NewReader(rc), topic, handler)
}

// NewConsumerWithReader creates a Consumer on top of an existing reader.
func NewConsumerWithReader(r MessageReader, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:  r,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler: handler,
	}
}

// Start enters the consume loop, fetching and processing messages until ctx
// is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return nil
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)
		if err := c.handler(ctx, toMessage(msg)); err != nil {
			c.logger.Error("failed to process message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

func toMessage(msg kafka.Message) Message {
	m := Message{Key: msg.Key, Value: msg.Value, Partition: msg.Partition, Offset: msg.Offset}
	for _, h := range msg.Headers {
		if h.Key == EventTypeHeader {
			m.Type = string(h.Value)
		}
	}
	return m
}

// Close closes the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON is a generic helper that unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
