package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_WrapsConnectionErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	h := New(NewRedisStore(client)).Deduplication("C1", "M1")
	ctx := context.Background()

	_, err := h.IsExecuted(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dedup exists dedup:ozon-support:C1:M1")

	err = h.Save(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dedup mark")

	err = h.Delete(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dedup remove")
}
