package redispub

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"sessionwatch/pkg/models"
)

// Config configures the Redis publisher.
type Config struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Publisher fans accepted events out on a Redis channel for live
// dashboards. Delivery is best effort.
type Publisher struct {
	client  *redis.Client
	channel string
}

// New creates a Redis publisher.
func New(cfg Config) (*Publisher, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Channel == "" {
		cfg.Channel = "session_events"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Publisher{client: client, channel: cfg.Channel}, nil
}

// Publish sends one event to the channel.
func (p *Publisher) Publish(ctx context.Context, event *models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close closes the client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
