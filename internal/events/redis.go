package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel events are published to
const DefaultChannel = "dungeon-engine:events"

// publisher is the part of the Redis client RedisPublisher needs
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher forwards events to a Redis pub/sub channel as JSON
type RedisPublisher struct {
	client  publisher
	channel string
	closer  func() error
}

// NewRedisPublisher connects to Redis and verifies the connection
func NewRedisPublisher(ctx context.Context, address, password string, db int, channel string) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	p := newRedisPublisher(client, channel)
	p.closer = client.Close
	return p, nil
}

func newRedisPublisher(client publisher, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Publish sends one event
func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Run publishes every event of the subscription until it closes. Once ctx is
// done the subscription is closed and its buffered events are still published.
func (p *RedisPublisher) Run(ctx context.Context, sub *Subscription) {
	slog.Info("redis event publisher started", "channel", p.channel)
	defer slog.Info("redis event publisher stopped")

	publishCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			sub.Close()
			for e := range sub.C {
				p.publish(publishCtx, e)
			}
			return
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			p.publish(publishCtx, e)
		}
	}
}

func (p *RedisPublisher) publish(ctx context.Context, e Event) {
	if err := p.Publish(ctx, e); err != nil {
		slog.Error("failed to publish event", "kind", e.Kind, "session_id", e.SessionID, "error", err)
	}
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}
