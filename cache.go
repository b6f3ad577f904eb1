package memcached

import (
	"context"
	"errors"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is one named cache. Every key is stored under
// <prefix>:<name>:<namespace value>:<key>, where the namespace value is a
// counter kept in memcached; Clear bumps the counter so earlier keys are
// never read again.
type Cache struct {
	name       string
	client     Client
	expiration time.Duration
	prefix     string
	namespace  string
	logger     Logger
	observer   Observer
	loads      singleflight.Group
}

func newCache(name string, client Client, expiration time.Duration, cfg ManagerConfig) *Cache {
	return &Cache{
		name:       name,
		client:     client,
		expiration: expiration,
		prefix:     cfg.Prefix,
		namespace:  cfg.Namespace,
		logger:     loggerOrNop(cfg.Logger),
		observer:   cfg.Observer,
	}
}

// Name returns the cache name.
func (c *Cache) Name() string { return c.name }

// Expiration returns the lifetime applied to entries written by this cache.
// NoExpiration means entries stay until memcached evicts them.
func (c *Cache) Expiration() time.Duration { return c.expiration }

// Client returns the underlying memcached client.
func (c *Cache) Client() Client { return c.client }

// Get returns the value stored for key.
//
// Example: read after write
//
//	books := manager.Cache("books")
//	_ = books.Put("isbn-1", []byte("Dune"))
//	v, ok, _ := books.Get("isbn-1")
//	fmt.Println(string(v), ok) // Dune true
func (c *Cache) Get(key string) ([]byte, bool, error) {
	return c.GetCtx(context.Background(), key)
}

// GetCtx is the context-aware variant of Get.
func (c *Cache) GetCtx(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	body, ok, err := c.get(ctx, key)
	c.observe(ctx, OpGet, key, ok, err, start)
	return body, ok, err
}

// Put stores value for key with the cache expiration.
func (c *Cache) Put(key string, value []byte) error {
	return c.PutCtx(context.Background(), key, value)
}

// PutCtx is the context-aware variant of Put.
func (c *Cache) PutCtx(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := c.put(ctx, key, value)
	c.observe(ctx, OpPut, key, false, err, start)
	return err
}

// PutIfAbsent stores value only when key holds nothing. When a value is
// already present it is returned with true and left untouched.
//
// Example: first writer wins
//
//	books := manager.Cache("books")
//	_, _, _ = books.PutIfAbsent("isbn-1", []byte("Dune"))
//	v, ok, _ := books.PutIfAbsent("isbn-1", []byte("Emma"))
//	fmt.Println(string(v), ok) // Dune true
func (c *Cache) PutIfAbsent(key string, value []byte) ([]byte, bool, error) {
	return c.PutIfAbsentCtx(context.Background(), key, value)
}

// PutIfAbsentCtx is the context-aware variant of PutIfAbsent.
func (c *Cache) PutIfAbsentCtx(ctx context.Context, key string, value []byte) ([]byte, bool, error) {
	start := time.Now()
	existing, ok, err := c.putIfAbsent(ctx, key, value)
	c.observe(ctx, OpPutIfAbsent, key, ok, err, start)
	return existing, ok, err
}

func (c *Cache) putIfAbsent(ctx context.Context, key string, value []byte) ([]byte, bool, error) {
	itemKey, err := c.itemKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	added, err := c.client.Add(ctx, itemKey, value, c.expiration)
	if err != nil || added {
		return nil, false, err
	}
	return c.client.Get(ctx, itemKey)
}

// Evict removes key. Missing keys are not an error.
func (c *Cache) Evict(key string) error {
	return c.EvictCtx(context.Background(), key)
}

// EvictCtx is the context-aware variant of Evict.
func (c *Cache) EvictCtx(ctx context.Context, key string) error {
	start := time.Now()
	itemKey, err := c.itemKey(ctx, key)
	if err == nil {
		err = c.client.Delete(ctx, itemKey)
	}
	c.observe(ctx, OpEvict, key, false, err, start)
	return err
}

// Clear invalidates every entry of this cache. Other caches sharing the
// client are not affected.
func (c *Cache) Clear() error {
	return c.ClearCtx(context.Background())
}

// ClearCtx is the context-aware variant of Clear.
func (c *Cache) ClearCtx(ctx context.Context) error {
	start := time.Now()
	if c.client == nil {
		c.observe(ctx, OpClear, "", false, ErrNilClient, start)
		return ErrNilClient
	}
	_, found, err := c.client.Increment(ctx, c.namespaceKey(), 1)
	if err == nil && !found {
		// Nothing was ever written under a namespace value; the next write
		// seeds a fresh one.
		c.logger.Debug("memcached cache clear without namespace", Fields{"cache": c.name})
	}
	c.observe(ctx, OpClear, "", found, err, start)
	return err
}

// GetOrLoad returns the value for key, calling load and storing its result
// on a miss. Concurrent callers for the same key share one load.
func (c *Cache) GetOrLoad(key string, load func(context.Context) ([]byte, error)) ([]byte, error) {
	return c.GetOrLoadCtx(context.Background(), key, load)
}

// GetOrLoadCtx is the context-aware variant of GetOrLoad.
func (c *Cache) GetOrLoadCtx(ctx context.Context, key string, load func(context.Context) ([]byte, error)) ([]byte, error) {
	start := time.Now()
	body, hit, err := c.getOrLoad(ctx, key, load)
	c.observe(ctx, OpGetOrLoad, key, hit, err, start)
	return body, err
}

func (c *Cache) getOrLoad(ctx context.Context, key string, load func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	if load == nil {
		return nil, false, &LoadError{Cache: c.name, Key: key, Err: errors.New("nil loader")}
	}
	body, ok, err := c.get(ctx, key)
	if err != nil || ok {
		return body, ok, err
	}
	// The shared load outlives any single caller; each caller still stops
	// waiting when its own context ends.
	shared := context.WithoutCancel(ctx)
	ch := c.loads.DoChan(key, func() (any, error) {
		// Another caller may have stored the value while we waited.
		body, ok, err := c.get(shared, key)
		if err != nil || ok {
			return body, err
		}
		body, err = load(shared)
		if err != nil {
			return nil, &LoadError{Cache: c.name, Key: key, Err: err}
		}
		if err := c.put(shared, key, body); err != nil {
			return nil, err
		}
		return body, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]byte), false, nil
	}
}

func (c *Cache) get(ctx context.Context, key string) ([]byte, bool, error) {
	itemKey, err := c.itemKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return c.client.Get(ctx, itemKey)
}

func (c *Cache) put(ctx context.Context, key string, value []byte) error {
	itemKey, err := c.itemKey(ctx, key)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, itemKey, value, c.expiration)
}

func (c *Cache) itemKey(ctx context.Context, key string) (string, error) {
	if c.client == nil {
		return "", ErrNilClient
	}
	ns, err := c.namespaceValue(ctx)
	if err != nil {
		return "", err
	}
	return joinKey(c.prefix, c.name, ns, key), nil
}

func (c *Cache) namespaceKey() string {
	return joinKey(c.prefix, c.name, c.namespace)
}

// namespaceValue returns the current namespace counter, seeding it with the
// current time in milliseconds when absent. The counter never expires.
func (c *Cache) namespaceValue(ctx context.Context) (string, error) {
	nsKey := c.namespaceKey()
	body, ok, err := c.client.Get(ctx, nsKey)
	if err != nil {
		return "", err
	}
	if ok {
		return string(body), nil
	}
	seed := strconv.FormatInt(time.Now().UnixMilli(), 10)
	added, err := c.client.Add(ctx, nsKey, []byte(seed), NoExpiration)
	if err != nil {
		return "", err
	}
	if added {
		return seed, nil
	}
	body, ok, err = c.client.Get(ctx, nsKey)
	if err != nil {
		return "", err
	}
	if !ok {
		return seed, nil
	}
	return string(body), nil
}

func (c *Cache) observe(ctx context.Context, op, key string, hit bool, err error, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.OnCacheOp(ctx, op, c.name, key, hit, err, time.Since(start))
}
