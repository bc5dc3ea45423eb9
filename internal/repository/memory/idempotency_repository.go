package memory

import (
	"context"
	"time"

	"notification-hub-be/internal/repository"

	"github.com/patrickmn/go-cache"
)

type pendingResult struct{}

// IdempotencyRepository keeps idempotency keys in process. Used when Redis is
// not configured or unreachable.
type IdempotencyRepository struct {
	cache *cache.Cache
}

func NewIdempotencyRepository(defaultTTL time.Duration) repository.IdempotencyRepository {
	c := cache.New(defaultTTL, 10*time.Minute)
	return &IdempotencyRepository{
		cache: c,
	}
}

func (r *IdempotencyRepository) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	// Add fails when the key is present and unexpired.
	if err := r.cache.Add(key, pendingResult{}, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

func (r *IdempotencyRepository) Complete(_ context.Context, key string, result []byte, ttl time.Duration) error {
	r.cache.Set(key, result, ttl)
	return nil
}

func (r *IdempotencyRepository) Get(_ context.Context, key string) ([]byte, bool, error) {
	x, found := r.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	if result, ok := x.([]byte); ok {
		return result, true, nil
	}
	return nil, true, nil
}

func (r *IdempotencyRepository) Release(_ context.Context, key string) error {
	r.cache.Delete(key)
	return nil
}
