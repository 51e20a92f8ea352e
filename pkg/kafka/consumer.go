package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/white/crm-backend/config"
	"go.uber.org/zap"
)

const (
	pollTimeout = time.Second
	retryDelay  = 5 * time.Second
)

// Message is the part of a Kafka record a MessageHandler sees.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// MessageHandler processes one record. A non-nil error leaves the record
// uncommitted and it is delivered again after a short pause.
type MessageHandler func(ctx context.Context, msg Message) error

// Consumer reads with manual commits so a record is only acknowledged after
// its handler succeeded.
type Consumer struct {
	consumer *kafka.Consumer
	group    string
}

func NewConsumer(cfg config.KafkaConfig) (*Consumer, error) {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(cfg.Brokers, ","),
		"group.id":           cfg.ConsumerGroup,
		"client.id":          cfg.ClientID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	}
	if err := applySASL(configMap, cfg); err != nil {
		return nil, err
	}

	consumer, err := kafka.NewConsumer(configMap)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}
	return &Consumer{consumer: consumer, group: cfg.ConsumerGroup}, nil
}

func (c *Consumer) Subscribe(topics []string) error {
	if err := c.consumer.SubscribeTopics(topics, nil); err != nil {
		return fmt.Errorf("failed to subscribe to %v: %w", topics, err)
	}
	zap.L().Info("kafka consumer subscribed", zap.String("group", c.group), zap.Strings("topics", topics))
	return nil
}

// Consume polls until ctx is cancelled. Records are committed one by one
// after the handler returns nil. On a handler error the partition is rewound
// to the failed record so it is retried instead of skipped.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	var processed, failed int
	defer func() {
		zap.L().Info("kafka consumer stopped", zap.Int("processed", processed), zap.Int("failed", failed))
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := c.consumer.ReadMessage(pollTimeout)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.IsTimeout() {
				continue
			}
			return fmt.Errorf("error reading message: %w", err)
		}

		m := toMessage(msg)
		if err := handler(ctx, m); err != nil {
			failed++
			zap.L().Error("error processing message",
				zap.String("topic", m.Topic),
				zap.Int32("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
			if err := c.consumer.Seek(msg.TopicPartition, 0); err != nil {
				return fmt.Errorf("failed to rewind %s[%d]: %w", m.Topic, m.Partition, err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
			continue
		}

		processed++
		if _, err := c.consumer.CommitMessage(msg); err != nil {
			zap.L().Warn("error committing message", zap.String("topic", m.Topic), zap.Error(err))
		}
	}
}

func toMessage(msg *kafka.Message) Message {
	m := Message{
		Partition: msg.TopicPartition.Partition,
		Offset:    int64(msg.TopicPartition.Offset),
		Key:       msg.Key,
		Value:     msg.Value,
	}
	if msg.TopicPartition.Topic != nil {
		m.Topic = *msg.TopicPartition.Topic
	}
	return m
}

// Close leaves the group and releases the client.
func (c *Consumer) Close() {
	if c.consumer != nil {
		_ = c.consumer.Close()
	}
}
