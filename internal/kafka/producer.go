package kafka

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"socialnet/internal/config"
)

// MessageProducer defines the interface for a Kafka message producer.
type MessageProducer interface {
	SendMessage(ctx context.Context, topic string, key []byte, payload []byte) error
	Close()
}

// confluentKafkaProducer is an implementation of MessageProducer using confluent-kafka-go.
type confluentKafkaProducer struct {
	producer *kafka.Producer
	log      *zap.Logger
}

// NewConfluentKafkaProducer creates a new Kafka producer instance using confluent-kafka-go.
func NewConfluentKafkaProducer(cfg config.KafkaConfig, log *zap.Logger) (MessageProducer, error) {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers": strings.Join(cfg.Brokers, ","),
		"security.protocol": cfg.Protocol,
		"acks":              "all",
	}
	if cfg.ClientID != "" {
		_ = configMap.SetKey("client.id", cfg.ClientID)
	}

	p, err := kafka.NewProducer(configMap)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return &confluentKafkaProducer{producer: p, log: log.Named("kafka.producer")}, nil
}

// SendMessage sends a single message and waits for its delivery report.
func (p *confluentKafkaProducer) SendMessage(ctx context.Context, topic string, key []byte, payload []byte) error {
	deliveryChan := make(chan kafka.Event, 1)

	kafkaMsg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            key,
		Value:          payload,
		Timestamp:      time.Now(),
	}

	if err := p.producer.Produce(kafkaMsg, deliveryChan); err != nil {
		// local failure, e.g. the queue is full
		return fmt.Errorf("kafka producer failed to enqueue message for topic %s: %w", topic, err)
	}

	select {
	case e := <-deliveryChan:
		m, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("kafka producer: unexpected event type received on delivery channel: %T %v", e, e)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("kafka producer: delivery failed for topic %s: %w", topic, m.TopicPartition.Error)
		}
		p.log.Debug("message delivered",
			zap.String("topic", topic),
			zap.Int32("partition", m.TopicPartition.Partition),
			zap.String("offset", m.TopicPartition.Offset.String()))
		return nil
	case <-ctx.Done():
		// the message may still be delivered later
		return fmt.Errorf("kafka producer: context canceled while waiting for delivery report for topic %s: %w", topic, ctx.Err())
	}
}

// Close flushes any outstanding messages and closes the Kafka producer.
func (p *confluentKafkaProducer) Close() {
	if p.producer == nil {
		return
	}
	p.log.Info("closing Kafka producer")
	if remaining := p.producer.Flush(15 * 1000); remaining > 0 {
		p.log.Warn("messages still outstanding after flush", zap.Int("remaining", remaining))
	}
	p.producer.Close()
	p.producer = nil
}

// ProducedMessage is a message accepted by a NoopProducer.
type ProducedMessage struct {
	Topic   string
	Key     []byte
	Payload []byte
}

// NoopProducer accepts every message without a broker. It is used when
// KAFKA.ENABLED is false and keeps what it was given for inspection.
type NoopProducer struct {
	mu       sync.Mutex
	messages []ProducedMessage
	Err      error // returned by SendMessage when set
}

func NewNoopProducer() *NoopProducer {
	return &NoopProducer{}
}

func (p *NoopProducer) SendMessage(ctx context.Context, topic string, key []byte, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.messages = append(p.messages, ProducedMessage{Topic: topic, Key: key, Payload: payload})
	return nil
}

// Messages returns a copy of everything sent so far.
func (p *NoopProducer) Messages() []ProducedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ProducedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// Reset drops the recorded messages.
func (p *NoopProducer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = nil
}

func (p *NoopProducer) Close() {}
