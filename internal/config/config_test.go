package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 10000, cfg.HTTPPort)
	assert.Equal(t, "whatsapp", cfg.MongoDB)
	assert.Equal(t, "messages", cfg.MongoCollection)
	assert.Equal(t, "wapp:buffer:v1", cfg.RedisListKey)
	assert.Equal(t, time.Hour, cfg.FlushInterval())
	assert.Equal(t, 5000, cfg.FlushBatchLimit)
	assert.Equal(t, 10*time.Second, cfg.RedisBootTimeout())
	assert.False(t, cfg.BufferEnabled())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WABRIDGE_HTTP_PORT", "8081")
	t.Setenv("WABRIDGE_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("WABRIDGE_MSG_TTL_DAYS", "7")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.HTTPPort)
	assert.True(t, cfg.BufferEnabled())
	assert.Equal(t, 7, cfg.MessageTTLDays)
	assert.Equal(t, ":8081", cfg.GetHTTPAddr())
}

func TestResolveDefaultsLowerBounds(t *testing.T) {
	cfg := &Config{
		HTTPPort:        10000,
		FlushSeconds:    5,
		FlushBatchLimit: 10,
		MessageTTLDays:  -1,
	}
	require.NoError(t, cfg.ResolveDefaults())

	assert.Equal(t, 30, cfg.FlushSeconds)
	assert.Equal(t, 100, cfg.FlushBatchLimit)
	assert.Equal(t, 0, cfg.MessageTTLDays)
	assert.Equal(t, 10*time.Second, cfg.RedisBootTimeout())
}

func TestResolveDefaultsRejectsBadPort(t *testing.T) {
	cfg := &Config{HTTPPort: -1}
	assert.Error(t, cfg.ResolveDefaults())
}
