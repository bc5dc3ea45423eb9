package implementation

import (
	"context"
	"errors"
	"time"

	"notification-hub-be/internal/repository"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix = "notification:idempotency:"
	idempotencyPending   = "__pending__"
)

type RedisIdempotencyRepository struct {
	client *redis.Client
}

func NewRedisIdempotencyRepository(client *redis.Client) repository.IdempotencyRepository {
	return &RedisIdempotencyRepository{client: client}
}

func (r *RedisIdempotencyRepository) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, idempotencyKeyPrefix+key, idempotencyPending, ttl).Result()
}

func (r *RedisIdempotencyRepository) Complete(ctx context.Context, key string, result []byte, ttl time.Duration) error {
	return r.client.Set(ctx, idempotencyKeyPrefix+key, result, ttl).Err()
}

func (r *RedisIdempotencyRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, idempotencyKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if string(val) == idempotencyPending {
		return nil, true, nil
	}
	return val, true, nil
}

func (r *RedisIdempotencyRepository) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}
