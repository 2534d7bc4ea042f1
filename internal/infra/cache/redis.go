package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOnce выполняет действие не более одного раза на ключ в пределах TTL.
type RedisOnce struct {
	client *redis.Client
	prefix string
}

// NewRedis создаёт дедупликатор. prefix добавляется ко всем ключам.
func NewRedis(client *redis.Client, prefix string) *RedisOnce {
	return &RedisOnce{client: client, prefix: prefix}
}

// Once выполняет fn, если ключ ещё не задан. При ошибке fn ключ снимается, чтобы повтор прошёл.
func (c *RedisOnce) Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	full := c.prefix + key
	ok, err := c.client.SetNX(ctx, full, "1", ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := fn(); err != nil {
		_ = c.client.Del(context.WithoutCancel(ctx), full).Err()
		return err
	}
	return nil
}
