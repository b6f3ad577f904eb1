package memcached

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const memoryCleanupInterval = time.Minute

// memoryClient keeps entries in process. It backs ModeMemory and tests.
type memoryClient struct {
	cache *gocache.Cache
	// mu serializes writes so Increment's read-modify-write is atomic.
	mu     sync.Mutex
	closed atomic.Bool
}

func newMemoryClient() *memoryClient {
	return &memoryClient{cache: gocache.New(gocache.NoExpiration, memoryCleanupInterval)}
}

// NewMemoryClient returns an in-process Client with memcached semantics.
func NewMemoryClient() Client {
	return newMemoryClient()
}

func (c *memoryClient) check(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return ctx.Err()
}

func memoryTTL(exp time.Duration) time.Duration {
	if exp <= 0 {
		return gocache.NoExpiration
	}
	if exp < time.Second {
		return time.Second
	}
	return exp
}

func (c *memoryClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := c.check(ctx); err != nil {
		return nil, false, err
	}
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	body := v.([]byte)
	return append([]byte(nil), body...), true, nil
}

func (c *memoryClient) Set(ctx context.Context, key string, value []byte, exp time.Duration) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Set(key, append([]byte(nil), value...), memoryTTL(exp))
	return nil
}

func (c *memoryClient) Add(ctx context.Context, key string, value []byte, exp time.Duration) (bool, error) {
	if err := c.check(ctx); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// go-cache's Add fails only when a live item holds the key.
	if err := c.cache.Add(key, append([]byte(nil), value...), memoryTTL(exp)); err != nil {
		return false, nil
	}
	return true, nil
}

func (c *memoryClient) Delete(ctx context.Context, key string) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Delete(key)
	return nil
}

func (c *memoryClient) Increment(ctx context.Context, key string, delta uint64) (uint64, bool, error) {
	if err := c.check(ctx); err != nil {
		return 0, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	v, exp, ok := c.cache.GetWithExpiration(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseUint(string(v.([]byte)), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("memcached: key %q does not hold a counter", key)
	}
	n += delta
	ttl := gocache.NoExpiration
	if !exp.IsZero() {
		ttl = time.Until(exp)
		if ttl <= 0 {
			return 0, false, nil
		}
	}
	c.cache.Set(key, []byte(strconv.FormatUint(n, 10)), ttl)
	return n, true, nil
}

func (c *memoryClient) Touch(ctx context.Context, key string, exp time.Duration) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.cache.Get(key); ok {
		c.cache.Set(key, v, memoryTTL(exp))
	}
	return nil
}

func (c *memoryClient) FlushAll(ctx context.Context) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Flush()
	return nil
}

func (c *memoryClient) Ping(ctx context.Context) error {
	return c.check(ctx)
}

func (c *memoryClient) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.cache.Flush()
	}
	return nil
}
