package kafka

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/white/crm-backend/config"
	"go.uber.org/zap"
)

// Producer wraps a Kafka producer
type Producer struct {
	producer *kafka.Producer
	config   config.KafkaConfig
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers": strings.Join(cfg.Brokers, ","),
		"client.id":         cfg.ClientID,
		"acks":              "all",
	}
	if err := applySASL(configMap, cfg); err != nil {
		return nil, err
	}

	producer, err := kafka.NewProducer(configMap)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	go func() {
		for e := range producer.Events() {
			if ev, ok := e.(*kafka.Message); ok && ev.TopicPartition.Error != nil {
				zap.L().Error("kafka delivery failed",
					zap.Stringp("topic", ev.TopicPartition.Topic),
					zap.Error(ev.TopicPartition.Error))
			}
		}
	}()

	return &Producer{
		producer: producer,
		config:   cfg,
	}, nil
}

// Produce sends a message to a Kafka topic (async)
func (p *Producer) Produce(topic string, key, value []byte) error {
	message := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:   key,
		Value: value,
	}

	return p.producer.Produce(message, nil)
}

// ProduceSync sends a message and waits for delivery confirmation
func (p *Producer) ProduceSync(topic string, key, value []byte) error {
	deliveryChan := make(chan kafka.Event, 1)

	message := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:   key,
		Value: value,
	}

	if err := p.producer.Produce(message, deliveryChan); err != nil {
		return err
	}

	e := <-deliveryChan
	m, ok := e.(*kafka.Message)
	if !ok {
		return fmt.Errorf("unexpected delivery event: %v", e)
	}
	if m.TopicPartition.Error != nil {
		return fmt.Errorf("delivery failed: %w", m.TopicPartition.Error)
	}

	return nil
}

// PublishJSON marshals data to JSON and publishes it keyed by key
func (p *Producer) PublishJSON(topic, key string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	var k []byte
	if key != "" {
		k = []byte(key)
	}
	return p.Produce(topic, k, jsonData)
}

// Flush waits for all messages to be delivered
func (p *Producer) Flush(timeoutMs int) {
	p.producer.Flush(timeoutMs)
}

// Close closes the Kafka producer
func (p *Producer) Close() {
	if p.producer != nil {
		p.producer.Flush(p.config.ProducerTimeout)
		p.producer.Close()
	}
}

func applySASL(configMap *kafka.ConfigMap, cfg config.KafkaConfig) error {
	if cfg.Username == "" || cfg.Password == "" {
		return nil
	}

	protocol := "SASL_PLAINTEXT"
	if cfg.SSL {
		protocol = "SASL_SSL"
	}

	for k, v := range map[string]string{
		"sasl.mechanism":    strings.ToUpper(cfg.SASLMechanism),
		"sasl.username":     cfg.Username,
		"sasl.password":     cfg.Password,
		"security.protocol": protocol,
	} {
		if err := configMap.SetKey(k, v); err != nil {
			return fmt.Errorf("invalid kafka setting %s: %w", k, err)
		}
	}
	return nil
}
