package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api-seller.ozon.ru", cfg.Ozon.BaseURL)
	assert.Equal(t, 24*time.Hour, cfg.Dedup.MessageTTL)
	assert.Equal(t, time.Minute, cfg.Dedup.ProfileGuardTTL)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.ChatInterval)
	assert.Equal(t, time.Minute, cfg.Retry.ChatSendDelay)
	assert.Equal(t, 10*time.Minute, cfg.Retry.MarkReadDelay)
	assert.Equal(t, 10, cfg.Retry.MaxAttempts)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RETRY_MAX_ATTEMPTS", "3")
	t.Setenv("SCHEDULER_CHAT_INTERVAL", "30s")
	t.Setenv("DEDUP_BACKEND", "memory")
	t.Setenv("OZON_REQUESTS_PER_SECOND", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.ChatInterval)
	assert.Equal(t, "memory", cfg.Dedup.Backend)
	assert.InDelta(t, 2.5, cfg.Ozon.RequestsPerSecond, 0.0001)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Run("bad dedup backend", func(t *testing.T) {
		t.Setenv("DEDUP_BACKEND", "memcached")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("bad redis db", func(t *testing.T) {
		t.Setenv("REDIS_DB", "x")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unparsable duration falls back", func(t *testing.T) {
		t.Setenv("RETRY_CHAT_SEND_DELAY", "soon")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, time.Minute, cfg.Retry.ChatSendDelay)
	})
}

func TestRequestTimeout(t *testing.T) {
	assert.Equal(t, time.Duration(0), AppConfig{}.RequestTimeout())
	assert.Equal(t, 5*time.Second, AppConfig{RequestTimeoutSeconds: 5}.RequestTimeout())
}
