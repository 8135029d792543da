package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sellerdesk/ozon-support/internal/config"
	"github.com/sellerdesk/ozon-support/internal/dedup"
)

const defaultRedisDialTimeout = 5 * time.Second

// Redis holds the client behind the shared dedup store.
type Redis struct {
	Client redis.UniversalClient
}

// NewRedis connects and pings once. Workers on several hosts share the dedup
// window only through Redis, so an unreachable server fails startup.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Redis, error) {
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = defaultRedisDialTimeout
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: dial,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dial)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))

	return &Redis{Client: client}, nil
}

// DedupStore returns the dedup store on this connection.
func (r *Redis) DedupStore() *dedup.RedisStore {
	return dedup.NewRedisStore(r.Client)
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity for the readiness check.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
