package memcached

import (
	"context"
	"time"
)

// ReadAPI exposes read-oriented cache operations.
type ReadAPI interface {
	Get(key string) ([]byte, bool, error)
	GetCtx(ctx context.Context, key string) ([]byte, bool, error)
}

// WriteAPI exposes write and invalidation operations.
type WriteAPI interface {
	Put(key string, value []byte) error
	PutCtx(ctx context.Context, key string, value []byte) error
	PutIfAbsent(key string, value []byte) ([]byte, bool, error)
	PutIfAbsentCtx(ctx context.Context, key string, value []byte) ([]byte, bool, error)
	Evict(key string) error
	EvictCtx(ctx context.Context, key string) error
	Clear() error
	ClearCtx(ctx context.Context) error
}

// LoadAPI exposes read-through helpers.
type LoadAPI interface {
	GetOrLoad(key string, load func(context.Context) ([]byte, error)) ([]byte, error)
	GetOrLoadCtx(ctx context.Context, key string, load func(context.Context) ([]byte, error)) ([]byte, error)
}

// CacheAPI is the full surface of a named cache.
type CacheAPI interface {
	Name() string
	Expiration() time.Duration
	ReadAPI
	WriteAPI
	LoadAPI
}

// ManagerAPI is the cache manager surface.
type ManagerAPI interface {
	Cache(name string) *Cache
	CacheNames() []string
	Expiration(name string) time.Duration
	Close() error
}

var (
	_ CacheAPI   = (*Cache)(nil)
	_ ManagerAPI = (*CacheManager)(nil)
	_ Client     = (*memcacheClient)(nil)
	_ Client     = (*memoryClient)(nil)
)
