package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"notification-hub-be/internal/dto"
	"notification-hub-be/internal/pkg/logger"
	"notification-hub-be/internal/repository"
	"notification-hub-be/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyReplaysStoredResult(t *testing.T) {
	svc := NewIdempotencyService(memory.NewIdempotencyRepository(time.Minute), time.Minute, logger.NewNopLogger())
	ctx := context.Background()

	calls := 0
	send := func(context.Context) (*dto.AdminSendResult, error) {
		calls++
		return &dto.AdminSendResult{Message: &dto.NotificationMessage{ID: 7}, Delivered: true}, nil
	}

	first, replayed, err := svc.Do(ctx, "admin", "key-1", send)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.False(t, first.Replayed)

	second, replayed, err := svc.Do(ctx, "admin", "key-1", send)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.True(t, second.Replayed)
	assert.EqualValues(t, 7, second.Message.ID)
	assert.True(t, second.Delivered)
	assert.Equal(t, 1, calls)

	_, replayed, err = svc.Do(ctx, "other-admin", "key-1", send)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyWithoutKeyAlwaysRuns(t *testing.T) {
	svc := NewIdempotencyService(memory.NewIdempotencyRepository(time.Minute), time.Minute, logger.NewNopLogger())
	calls := 0
	send := func(context.Context) (*dto.AdminSendResult, error) {
		calls++
		return &dto.AdminSendResult{}, nil
	}

	for i := 0; i < 3; i++ {
		_, replayed, err := svc.Do(context.Background(), "admin", "", send)
		require.NoError(t, err)
		assert.False(t, replayed)
	}
	assert.Equal(t, 3, calls)
}

func TestIdempotencyInFlight(t *testing.T) {
	repo := memory.NewIdempotencyRepository(time.Minute)
	svc := NewIdempotencyService(repo, time.Minute, logger.NewNopLogger())
	ctx := context.Background()

	ok, err := repo.Reserve(ctx, "admin:busy", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, _, err = svc.Do(ctx, "admin", "busy", func(context.Context) (*dto.AdminSendResult, error) {
		t.Fatal("must not run while the key is reserved")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrRequestInFlight)
}

func TestIdempotencyFailureReleasesKey(t *testing.T) {
	svc := NewIdempotencyService(memory.NewIdempotencyRepository(time.Minute), time.Minute, logger.NewNopLogger())
	ctx := context.Background()

	_, _, err := svc.Do(ctx, "admin", "k", func(context.Context) (*dto.AdminSendResult, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)

	res, replayed, err := svc.Do(ctx, "admin", "k", func(context.Context) (*dto.AdminSendResult, error) {
		return &dto.AdminSendResult{Delivered: true}, nil
	})
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.True(t, res.Delivered)
}

type brokenIdempotencyRepo struct {
	repository.IdempotencyRepository
}

func (brokenIdempotencyRepo) Reserve(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func TestIdempotencyStoreDownStillSends(t *testing.T) {
	svc := NewIdempotencyService(brokenIdempotencyRepo{}, time.Minute, logger.NewNopLogger())
	res, replayed, err := svc.Do(context.Background(), "admin", "k", func(context.Context) (*dto.AdminSendResult, error) {
		return &dto.AdminSendResult{Delivered: true}, nil
	})
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.True(t, res.Delivered)
}
