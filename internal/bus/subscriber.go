package bus

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Message is one raw pub/sub delivery.
type Message struct {
	Channel string
	Payload []byte
}

// Subscriber delivers raw messages from named channels. The returned
// channel closes when the context is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) (<-chan Message, error)
}

// RedisSubscriber implements Subscriber on a Redis connection.
type RedisSubscriber struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisSubscriber wraps an existing Redis client for subscribing.
func NewRedisSubscriber(client *redis.Client, logger *zap.Logger) *RedisSubscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSubscriber{client: client, logger: logger}
}

// Compile-time interface check.
var _ Subscriber = (*RedisSubscriber)(nil)

// Subscribe opens a pub/sub subscription and forwards deliveries until
// the context is cancelled.
func (s *RedisSubscriber) Subscribe(ctx context.Context, channels ...string) (<-chan Message, error) {
	ps := s.client.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, err
	}

	out := make(chan Message, 256)
	go func() {
		defer close(out)
		defer ps.Close()
		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- Message{Channel: m.Channel, Payload: []byte(m.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	s.logger.Info("subscribed to channels", zap.Strings("channels", channels))
	return out, nil
}
