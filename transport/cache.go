package transport

import (
	"context"
	"strings"
	"sync"
)

// Cache is a key/value store for server responses. Implementations must be
// safe for concurrent use.
type Cache[S any] interface {
	Set(ctx context.Context, key string, val S) error
	Get(ctx context.Context, key string) (S, bool, error)
	Del(ctx context.Context, key string) error
	// Flush removes every entry whose key starts with prefix; an empty
	// prefix clears the whole cache.
	Flush(ctx context.Context, prefix string) error
}

// MemoryCache is an unbounded in-memory Cache for local usage and tests.
type MemoryCache[S any] struct {
	mu sync.RWMutex
	m  map[string]S
}

func NewMemoryCache[S any]() *MemoryCache[S] {
	return &MemoryCache[S]{m: map[string]S{}}
}

func (m *MemoryCache[S]) Set(ctx context.Context, key string, val S) error {
	m.mu.Lock()
	m.m[key] = val
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache[S]) Get(ctx context.Context, key string) (S, bool, error) {
	m.mu.RLock()
	val, ok := m.m[key]
	m.mu.RUnlock()
	return val, ok, nil
}

func (m *MemoryCache[S]) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.m, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache[S]) Flush(ctx context.Context, prefix string) error {
	m.mu.Lock()
	if prefix == "" {
		m.m = map[string]S{}
	} else {
		for key := range m.m {
			if strings.HasPrefix(key, prefix) {
				delete(m.m, key)
			}
		}
	}
	m.mu.Unlock()
	return nil
}

// Keyed prefixes every key with a namespace so multiple response families can
// share one Cache.
type Keyed[S any] struct {
	core      Cache[S]
	namespace string
}

func NewKeyed[S any](core Cache[S], namespace string) Keyed[S] {
	return Keyed[S]{core: core, namespace: namespace}
}

func (k Keyed[S]) Set(ctx context.Context, key string, val S) error {
	return k.core.Set(ctx, k.namespace+":"+key, val)
}

func (k Keyed[S]) Get(ctx context.Context, key string) (S, bool, error) {
	return k.core.Get(ctx, k.namespace+":"+key)
}

func (k Keyed[S]) Del(ctx context.Context, key string) error {
	return k.core.Del(ctx, k.namespace+":"+key)
}

// Flush removes only this namespace's entries; other namespaces sharing the
// underlying cache are untouched.
func (k Keyed[S]) Flush(ctx context.Context) error {
	return k.core.Flush(ctx, k.namespace+":")
}
