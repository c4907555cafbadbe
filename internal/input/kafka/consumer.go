package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"sessionwatch/internal/logger"
	"sessionwatch/pkg/models"
)

// Config configures the Kafka consumer.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// SubmitFunc hands one raw event to the pipeline.
type SubmitFunc func(ctx context.Context, raw *models.RawEvent) error

// Consumer reads session events from a Kafka topic and feeds them to
// the pipeline.
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer creates a Kafka consumer group reader.
func NewConsumer(cfg Config) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "sessionwatch"
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
		MaxWait:        5 * time.Second,
		ReadBackoffMin: 100 * time.Millisecond,
		ReadBackoffMax: time.Second,
	})

	return &Consumer{reader: reader}, nil
}

// Run reads and submits events until ctx is cancelled. Malformed
// payloads are logged and skipped.
func (c *Consumer) Run(ctx context.Context, submit SubmitFunc) {
	logger.Infof("Kafka consumer started: topic=%s", c.reader.Config().Topic)
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("Failed to read kafka message: %v", err)
			continue
		}

		var raw models.RawEvent
		if err := json.Unmarshal(msg.Value, &raw); err != nil {
			logger.Warnf("Malformed kafka payload at offset %d: %v", msg.Offset, err)
			continue
		}
		if err := submit(ctx, &raw); err != nil {
			logger.Warnf("Kafka event rejected: %v", err)
		}
	}
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
