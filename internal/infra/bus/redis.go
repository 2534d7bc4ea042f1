package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"slack-mock/internal/domain"
)

// Redis публикует события в канал Redis Pub/Sub.
type Redis struct {
	client  *redis.Client
	channel string
}

var _ domain.EventPublisher = (*Redis)(nil)

// NewRedis создаёт публикатор для указанного канала.
func NewRedis(client *redis.Client, channel string) *Redis {
	return &Redis{client: client, channel: channel}
}

// Publish отправляет событие командой PUBLISH.
func (r *Redis) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
