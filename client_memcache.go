package memcached

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/goforj/memcached/discovery"
)

type memcacheClient struct {
	mc     *memcache.Client
	poller *discovery.Poller
	logger Logger
	closed atomic.Bool
}

func newMemcacheClient(mc *memcache.Client, poller *discovery.Poller, logger Logger) *memcacheClient {
	return &memcacheClient{mc: mc, poller: poller, logger: loggerOrNop(logger)}
}

func (c *memcacheClient) check(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return ctx.Err()
}

func (c *memcacheClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := c.check(ctx); err != nil {
		return nil, false, err
	}
	item, err := c.mc.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return item.Value, true, nil
}

func (c *memcacheClient) Set(ctx context.Context, key string, value []byte, exp time.Duration) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	return c.mc.Set(&memcache.Item{Key: key, Value: value, Expiration: expirationSeconds(exp)})
}

func (c *memcacheClient) Add(ctx context.Context, key string, value []byte, exp time.Duration) (bool, error) {
	if err := c.check(ctx); err != nil {
		return false, err
	}
	err := c.mc.Add(&memcache.Item{Key: key, Value: value, Expiration: expirationSeconds(exp)})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, memcache.ErrNotStored):
		return false, nil
	default:
		return false, err
	}
}

func (c *memcacheClient) Delete(ctx context.Context, key string) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	if err := c.mc.Delete(key); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return err
	}
	return nil
}

func (c *memcacheClient) Increment(ctx context.Context, key string, delta uint64) (uint64, bool, error) {
	if err := c.check(ctx); err != nil {
		return 0, false, err
	}
	n, err := c.mc.Increment(key, delta)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func (c *memcacheClient) Touch(ctx context.Context, key string, exp time.Duration) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	err := c.mc.Touch(key, expirationSeconds(exp))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

func (c *memcacheClient) FlushAll(ctx context.Context) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	return c.mc.FlushAll()
}

func (c *memcacheClient) Ping(ctx context.Context) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	return c.mc.Ping()
}

func (c *memcacheClient) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.poller != nil {
		c.poller.Stop()
	}
	c.logger.Info("memcached client closed", nil)
	return c.mc.Close()
}
