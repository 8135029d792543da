// Package dedup guards against processing the same marketplace event twice
// within a time window.
package dedup

import (
	"context"
	"strings"
	"time"
)

const (
	// NamespaceSupport scopes keys of the support pipeline.
	NamespaceSupport = "ozon-support"
	// NamespaceOrders scopes keys of order chat creation.
	NamespaceOrders = "orders-order"

	defaultTTL = 24 * time.Hour
)

// Deduplicator builds handles for composite keys. Builder calls return copies.
type Deduplicator interface {
	Namespace(ns string) Deduplicator
	ExpiresAfter(ttl time.Duration) Deduplicator
	Deduplication(parts ...string) Handle
}

// Handle is a single dedup record.
type Handle interface {
	IsExecuted(ctx context.Context) (bool, error)
	Save(ctx context.Context) error
	Delete(ctx context.Context) error
	Key() string
}

// Store is the storage behind a Deduplicator.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}

type deduplicator struct {
	store     Store
	namespace string
	ttl       time.Duration
}

// New wraps a store. The default namespace is NamespaceSupport.
func New(store Store) Deduplicator {
	return deduplicator{store: store, namespace: NamespaceSupport, ttl: defaultTTL}
}

func (d deduplicator) Namespace(ns string) Deduplicator {
	d.namespace = ns
	return d
}

func (d deduplicator) ExpiresAfter(ttl time.Duration) Deduplicator {
	if ttl > 0 {
		d.ttl = ttl
	}
	return d
}

func (d deduplicator) Deduplication(parts ...string) Handle {
	return handle{store: d.store, key: buildKey(d.namespace, parts), ttl: d.ttl}
}

type handle struct {
	store Store
	key   string
	ttl   time.Duration
}

func (h handle) IsExecuted(ctx context.Context) (bool, error) {
	return h.store.Exists(ctx, h.key)
}

func (h handle) Save(ctx context.Context) error {
	return h.store.Mark(ctx, h.key, h.ttl)
}

func (h handle) Delete(ctx context.Context) error {
	return h.store.Remove(ctx, h.key)
}

func (h handle) Key() string {
	return h.key
}

var keyEscaper = strings.NewReplacer(`\`, `\\`, ":", `\:`)

// buildKey joins parts so that ("a:b","c") and ("a","b:c") never collide.
func buildKey(namespace string, parts []string) string {
	var b strings.Builder
	b.WriteString("dedup:")
	b.WriteString(keyEscaper.Replace(namespace))
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(keyEscaper.Replace(p))
	}
	return b.String()
}
