package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"github.com/roomcast/chat_backend/config"
	"github.com/roomcast/chat_backend/models"
)

// RedisAdapter is the cache-based pub/sub transport, using a single shared
// channel.
type RedisAdapter struct {
	client  *redis.Client
	channel string
}

func NewRedis(ctx context.Context, cfg *config.Config) (*RedisAdapter, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("[redis] Connected to %s", cfg.RedisURL)
	return &RedisAdapter{client: client, channel: cfg.RedisChannel}, nil
}

func (a *RedisAdapter) Listen(ctx context.Context, d Dispatcher) error {
	pubsub := a.client.Subscribe(ctx, a.channel)
	defer pubsub.Close()

	log.Printf("[redis] Subscribed to channel %q", a.channel)
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			dispatchEnvelope(d, []byte(msg.Payload))
		}
	}
}

func (a *RedisAdapter) Publish(ctx context.Context, env models.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := a.client.Publish(ctx, a.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", a.channel, err)
	}
	return nil
}

func (a *RedisAdapter) Close() error {
	err := a.client.Close()
	log.Println("[redis] Connection closed")
	return err
}
