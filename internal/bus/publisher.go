// Package bus broadcasts accepted events over Redis pub/sub so API
// consumers and external services can follow the stream live.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel names for event broadcast.
const (
	ChannelTrades      = "pump:trades"
	ChannelNewTokens   = "pump:tokens:new"
	ChannelCompletions = "pump:completions"
)

// Publisher broadcasts JSON payloads to a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// RedisPublisher implements Publisher on a Redis connection.
type RedisPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPublisher connects to Redis using a redis:// URL.
func NewRedisPublisher(ctx context.Context, redisURL string, logger *zap.Logger) (*RedisPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("connected to redis", zap.String("url", MaskURL(redisURL)))
	return &RedisPublisher{client: client, logger: logger}, nil
}

// Compile-time interface check.
var _ Publisher = (*RedisPublisher)(nil)

// Publish serializes payload as JSON and publishes it to channel.
func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", channel, err)
	}
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// Ping verifies the Redis connection is alive.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Client exposes the underlying connection for subscribers.
func (p *RedisPublisher) Client() *redis.Client {
	return p.client
}

// Close shuts down the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// MaskURL hides credentials in a connection URL for logging.
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	return u.String()
}
