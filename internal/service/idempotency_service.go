package service

import (
	"context"
	"encoding/json"
	"time"

	"notification-hub-be/internal/dto"
	"notification-hub-be/internal/pkg/logger"
	"notification-hub-be/internal/repository"
)

const idempotencyModule = "IdempotencyService"

type IIdempotencyService interface {
	// Do runs fn once per (scope, key) within the TTL. A replay returns the
	// stored result with replayed set. An empty key always runs fn.
	Do(ctx context.Context, scope, key string, fn func(ctx context.Context) (*dto.AdminSendResult, error)) (result *dto.AdminSendResult, replayed bool, err error)
}

type idempotencyService struct {
	repo   repository.IdempotencyRepository
	ttl    time.Duration
	logger logger.ILogger
}

func NewIdempotencyService(repo repository.IdempotencyRepository, ttl time.Duration, log logger.ILogger) IIdempotencyService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &idempotencyService{repo: repo, ttl: ttl, logger: log}
}

func (s *idempotencyService) Do(ctx context.Context, scope, key string, fn func(ctx context.Context) (*dto.AdminSendResult, error)) (*dto.AdminSendResult, bool, error) {
	if key == "" {
		res, err := fn(ctx)
		return res, false, err
	}
	fullKey := scope + ":" + key

	reserved, err := s.repo.Reserve(ctx, fullKey, s.ttl)
	if err != nil {
		// The key store is an optimization; sends still go through without it.
		s.logger.Warn(idempotencyModule, "Idempotency store unavailable, running without key", map[string]interface{}{"key": fullKey, "error": err})
		res, err := fn(ctx)
		return res, false, err
	}

	if !reserved {
		stored, found, err := s.repo.Get(ctx, fullKey)
		if err != nil {
			return nil, false, err
		}
		if found && stored == nil {
			return nil, false, ErrRequestInFlight
		}
		if found {
			var res dto.AdminSendResult
			if err := json.Unmarshal(stored, &res); err != nil {
				return nil, false, err
			}
			res.Replayed = true
			return &res, true, nil
		}
		// Expired between Reserve and Get.
		if reserved, err = s.repo.Reserve(ctx, fullKey, s.ttl); err != nil || !reserved {
			return nil, false, ErrRequestInFlight
		}
	}

	res, err := fn(ctx)
	if err != nil {
		if relErr := s.repo.Release(ctx, fullKey); relErr != nil {
			s.logger.Warn(idempotencyModule, "Failed to release idempotency key", map[string]interface{}{"key": fullKey, "error": relErr})
		}
		return nil, false, err
	}

	data, err := json.Marshal(res)
	if err == nil {
		err = s.repo.Complete(ctx, fullKey, data, s.ttl)
	}
	if err != nil {
		s.logger.Warn(idempotencyModule, "Failed to store idempotent result", map[string]interface{}{"key": fullKey, "error": err})
	}
	return res, false, nil
}
