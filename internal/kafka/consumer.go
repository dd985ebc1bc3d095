package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"socialnet/internal/config"
)

// MessageHandler is a function type for processing consumed Kafka messages.
type MessageHandler func(ctx context.Context, msg *kafka.Message) error

// MessageConsumer defines the interface for a Kafka message consumer.
type MessageConsumer interface {
	Consume(ctx context.Context, topics []string, groupID string, handler MessageHandler) error
	Close()
}

// confluentKafkaConsumer is an implementation of MessageConsumer using confluent-kafka-go.
type confluentKafkaConsumer struct {
	consumer *kafka.Consumer
	cfg      config.KafkaConfig
	groupID  string
	log      *zap.Logger

	retryBackoff time.Duration
}

// NewConfluentKafkaConsumer creates a consumer; the underlying client is built in Consume.
func NewConfluentKafkaConsumer(cfg config.KafkaConfig, log *zap.Logger) (MessageConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka consumer: no brokers configured")
	}
	return &confluentKafkaConsumer{cfg: cfg, log: log.Named("kafka.consumer"), retryBackoff: time.Second}, nil
}

// Consume blocks until ctx is canceled or a fatal error occurs. Offsets are
// committed only after handler succeeds; a failed message is redelivered.
func (c *confluentKafkaConsumer) Consume(ctx context.Context, topics []string, groupID string, handler MessageHandler) error {
	if len(topics) == 0 {
		return fmt.Errorf("kafka consumer: no topics specified")
	}
	c.groupID = groupID
	log := c.log.With(zap.String("group", groupID))

	configMap := &kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(c.cfg.Brokers, ","),
		"group.id":           c.groupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": "false",
		"security.protocol":  c.cfg.Protocol,
	}
	if c.cfg.ClientID != "" {
		_ = configMap.SetKey("client.id", c.cfg.ClientID)
	}

	consumer, err := kafka.NewConsumer(configMap)
	if err != nil {
		return fmt.Errorf("failed to create Kafka consumer for group %s: %w", groupID, err)
	}
	c.consumer = consumer

	if err = c.consumer.SubscribeTopics(topics, nil); err != nil {
		_ = c.consumer.Close()
		c.consumer = nil
		return fmt.Errorf("failed to subscribe to topics %v for group %s: %w", topics, groupID, err)
	}

	log.Info("Kafka consumer started", zap.Strings("topics", topics))
	return consumeLoop(ctx, c.consumer, handler, c.retryBackoff, log)
}

// pollClient is the part of *kafka.Consumer the loop uses.
type pollClient interface {
	Poll(timeoutMs int) kafka.Event
	CommitMessage(m *kafka.Message) ([]kafka.TopicPartition, error)
	Seek(partition kafka.TopicPartition, ignoredTimeoutMs int) error
	Assign(partitions []kafka.TopicPartition) error
	Unassign() error
}

// consumeLoop polls until ctx is done. A message whose handler fails is not
// committed: the partition is rewound to its offset and redelivered after
// backoff, so later commits never skip it.
func consumeLoop(ctx context.Context, client pollClient, handler MessageHandler, backoff time.Duration, log *zap.Logger) error {
	for {
		select {
		case <-ctx.Done():
			log.Info("context canceled, consumer loop finished")
			return nil
		default:
		}

		ev := client.Poll(1000)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			fields := []zap.Field{
				zap.String("topic", *e.TopicPartition.Topic),
				zap.Int32("partition", e.TopicPartition.Partition),
				zap.String("offset", e.TopicPartition.Offset.String()),
			}
			if err := handler(ctx, e); err != nil {
				log.Error("processing Kafka message failed, retrying", append(fields, zap.Error(err))...)
				if err := client.Seek(e.TopicPartition, 0); err != nil {
					log.Error("seek back to failed offset failed", append(fields, zap.Error(err))...)
				}
				select {
				case <-ctx.Done():
				case <-time.After(backoff):
				}
				continue
			}
			if _, err := client.CommitMessage(e); err != nil {
				log.Warn("commit offset failed", append(fields, zap.Error(err))...)
			}
		case kafka.Error:
			if e.IsFatal() {
				log.Error("fatal Kafka error, stopping consumer", zap.Error(e))
				return e
			}
			log.Warn("Kafka consumer error", zap.Error(e), zap.Bool("retriable", e.IsRetriable()))
		case kafka.AssignedPartitions:
			log.Info("partitions assigned", zap.Int("count", len(e.Partitions)))
			_ = client.Assign(e.Partitions)
		case kafka.RevokedPartitions:
			log.Info("partitions revoked", zap.Int("count", len(e.Partitions)))
			_ = client.Unassign()
		}
	}
}

// Close closes the Kafka consumer.
func (c *confluentKafkaConsumer) Close() {
	if c.consumer == nil {
		return
	}
	if err := c.consumer.Close(); err != nil {
		c.log.Warn("error closing Kafka consumer", zap.String("group", c.groupID), zap.Error(err))
	}
	c.consumer = nil
}
