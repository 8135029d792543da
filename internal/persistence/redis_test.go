package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sellerdesk/ozon-support/internal/config"
)

func TestNewRedis_UnreachableFailsStartup(t *testing.T) {
	rdb, err := NewRedis(context.Background(), config.RedisConfig{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
	}, zap.NewNop())
	require.Error(t, err)
	assert.Nil(t, rdb)
	assert.Contains(t, err.Error(), "ping redis 127.0.0.1:1")
}

func TestRedis_NilIsNotReady(t *testing.T) {
	var rdb *Redis
	assert.Error(t, rdb.Ping(context.Background()))
	rdb.Close()
}
