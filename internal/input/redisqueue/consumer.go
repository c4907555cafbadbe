package redisqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"sessionwatch/internal/logger"
	"sessionwatch/pkg/models"
)

// Config configures the Redis queue consumer.
type Config struct {
	Addr         string
	Password     string
	DB           int
	Key          string
	BlockTimeout time.Duration
}

// SubmitFunc hands one raw event to the pipeline.
type SubmitFunc func(ctx context.Context, raw *models.RawEvent) error

// Consumer pops session events off a Redis list and feeds them to the
// pipeline. Agents that cannot hold a WebSocket open push here.
type Consumer struct {
	client       *redis.Client
	key          string
	blockTimeout time.Duration
}

// NewConsumer creates a Redis consumer for list-based queues.
func NewConsumer(cfg Config) (*Consumer, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis key is required")
	}
	if cfg.BlockTimeout == 0 {
		cfg.BlockTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Consumer{
		client:       client,
		key:          cfg.Key,
		blockTimeout: cfg.BlockTimeout,
	}, nil
}

// Run pops and submits events until ctx is cancelled. Malformed
// payloads are logged and skipped; they must not stall the queue.
func (c *Consumer) Run(ctx context.Context, submit SubmitFunc) {
	logger.Infof("Redis queue consumer started: key=%s", c.key)
	for {
		if ctx.Err() != nil {
			return
		}

		payload, err := c.pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("Failed to pop redis message: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if payload == nil {
			continue
		}

		var raw models.RawEvent
		if err := json.Unmarshal(payload, &raw); err != nil {
			logger.Warnf("Malformed queue payload: %v", err)
			continue
		}
		if err := submit(ctx, &raw); err != nil {
			logger.Warnf("Queue event rejected: %v", err)
		}
	}
}

func (c *Consumer) pop(ctx context.Context) ([]byte, error) {
	res, err := c.client.BLPop(ctx, c.blockTimeout, c.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}
	return []byte(res[1]), nil
}

// Close closes the consumer.
func (c *Consumer) Close() error {
	return c.client.Close()
}
