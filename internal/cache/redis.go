
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps a slot entry as JSON under a single key.
type RedisStore[T any] struct {
	client    redis.Cmdable
	key       string
	retention time.Duration
}

// NewRedisStore keeps entries for retention; pick it longer than the slot
// TTL so a stale value survives for fallback.
func NewRedisStore[T any](client redis.Cmdable, key string, retention time.Duration) *RedisStore[T] {
	return &RedisStore[T]{client: client, key: key, retention: retention}
}

func (r *RedisStore[T]) Load(ctx context.Context) (Entry[T], bool, error) {
	var e Entry[T]
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return e, false, nil
	}
	if err != nil {
		return e, false, err
	}
	if err := json.Unmarshal(data, &e); err != nil {
		return e, false, err
	}
	return e, true, nil
}

func (r *RedisStore[T]) Save(ctx context.Context, e Entry[T]) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, data, r.retention).Err()
}
