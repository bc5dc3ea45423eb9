package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "3000")
	t.Setenv("REALTIME_CHANNEL_TIMEOUT", "")
	t.Setenv("NOTIFICATION_MAX_PAGE_SIZE", "")

	cfg := Load()

	assert.Equal(t, "3000", cfg.App.Port)
	assert.Equal(t, time.Duration(0), cfg.Realtime.ChannelTimeout)
	assert.Equal(t, 200, cfg.Notification.MaxPageSize)
	assert.Equal(t, 50, cfg.Notification.DefaultPageSize)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REALTIME_CHANNEL_TIMEOUT", "30m")
	t.Setenv("REALTIME_BUFFER_SIZE", "8")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("GO_ENV", "production")
	t.Setenv("STORAGE_DRIVER", StorageDriverMemory)

	cfg := Load()

	assert.Equal(t, 30*time.Minute, cfg.Realtime.ChannelTimeout)
	assert.Equal(t, 8, cfg.Realtime.BufferSize)
	assert.True(t, cfg.Tracing.Enabled)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, StorageDriverMemory, cfg.App.StorageDriver)
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("REALTIME_SHARDS", "many")
	t.Setenv("REALTIME_HEARTBEAT", "soon")

	cfg := Load()

	assert.Equal(t, 32, cfg.Realtime.Shards)
	assert.Equal(t, 25*time.Second, cfg.Realtime.Heartbeat)
}

func TestHeartbeatCannotBeDisabled(t *testing.T) {
	for _, value := range []string{"0", "-5s"} {
		t.Setenv("REALTIME_HEARTBEAT", value)
		assert.Equal(t, 25*time.Second, Load().Realtime.Heartbeat, value)
	}
}
