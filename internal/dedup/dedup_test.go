package dedup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) (*MemoryStore, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.now = c.Now
	t.Cleanup(func() { _ = store.Close() })
	return store, c
}

func TestDeduplicator_HandleLifecycle(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	d := New(store)

	h := d.Deduplication("C1", "M1", "chat-reconcile")
	executed, err := h.IsExecuted(ctx)
	require.NoError(t, err)
	assert.False(t, executed)

	require.NoError(t, h.Save(ctx))
	executed, err = d.Deduplication("C1", "M1", "chat-reconcile").IsExecuted(ctx)
	require.NoError(t, err)
	assert.True(t, executed, "a fresh handle for the same key sees the record")

	require.NoError(t, h.Delete(ctx))
	executed, err = h.IsExecuted(ctx)
	require.NoError(t, err)
	assert.False(t, executed)
}

func TestDeduplicator_ExpiresAfter(t *testing.T) {
	store, c := newTestStore(t)
	ctx := context.Background()

	h := New(store).ExpiresAfter(time.Minute).Deduplication("profile-1", "question-sync")
	require.NoError(t, h.Save(ctx))

	c.Advance(59 * time.Second)
	executed, _ := h.IsExecuted(ctx)
	assert.True(t, executed)

	c.Advance(2 * time.Second)
	executed, _ = h.IsExecuted(ctx)
	assert.False(t, executed)

	store.sweep()
	assert.Equal(t, 0, store.Len())
}

func TestDeduplicator_SaveKeepsOriginalExpiry(t *testing.T) {
	store, c := newTestStore(t)
	ctx := context.Background()
	h := New(store).ExpiresAfter(time.Minute).Deduplication("k")

	require.NoError(t, h.Save(ctx))
	c.Advance(50 * time.Second)
	require.NoError(t, h.Save(ctx))
	c.Advance(20 * time.Second)

	executed, _ := h.IsExecuted(ctx)
	assert.False(t, executed)
}

func TestDeduplicator_BuilderIsImmutable(t *testing.T) {
	store, _ := newTestStore(t)
	base := New(store)
	orders := base.Namespace(NamespaceOrders)

	assert.NotEqual(t, base.Deduplication("1").Key(), orders.Deduplication("1").Key())
	assert.Equal(t, "dedup:ozon-support:1", base.Deduplication("1").Key())
	assert.Equal(t, "dedup:orders-order:1", orders.Deduplication("1").Key())
}

func TestBuildKey_NoCollisions(t *testing.T) {
	a := buildKey("ns", []string{"a:b", "c"})
	b := buildKey("ns", []string{"a", "b:c"})
	assert.NotEqual(t, a, b)
	assert.Equal(t, `dedup:ns:a\:b:c`, a)
}
