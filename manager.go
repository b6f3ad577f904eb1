package memcached

import (
	"slices"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// CacheManager hands out named caches that share one memcached client.
type CacheManager struct {
	client Client
	cfg    ManagerConfig
	caches *xsync.MapOf[string, *Cache]

	closeOnce sync.Once
	closeErr  error
}

// NewCacheManager builds a manager over client.
//
// Example: memory-backed manager
//
//	m := memcached.NewCacheManager(memcached.NewMemoryClient(),
//		memcached.WithExpirations(map[string]time.Duration{"books": time.Minute}),
//	)
//	fmt.Println(m.Cache("books").Expiration()) // 1m0s
func NewCacheManager(client Client, opts ...Option) *CacheManager {
	var cfg ManagerConfig
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	return &CacheManager{
		client: client,
		cfg:    cfg.withDefaults(),
		caches: xsync.NewMapOf[string, *Cache](),
	}
}

// Cache returns the cache for name, creating it on first use. Concurrent
// first calls all receive the same instance.
func (m *CacheManager) Cache(name string) *Cache {
	if c, ok := m.caches.Load(name); ok {
		return c
	}
	created := newCache(name, m.client, m.Expiration(name), m.cfg)
	c, loaded := m.caches.LoadOrStore(name, created)
	if !loaded {
		m.cfg.Logger.Debug("memcached cache created", Fields{
			"cache":      name,
			"expiration": c.expiration.String(),
		})
	}
	return c
}

// CacheNames returns the names of the caches created so far, sorted.
func (m *CacheManager) CacheNames() []string {
	names := make([]string, 0, m.caches.Size())
	m.caches.Range(func(name string, _ *Cache) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

// Expiration resolves the expiration for name: its own entry when one is
// configured, the default otherwise.
func (m *CacheManager) Expiration(name string) time.Duration {
	if d, ok := m.cfg.Expirations[name]; ok {
		return d
	}
	return m.cfg.Expiration
}

// Client returns the shared client.
func (m *CacheManager) Client() Client { return m.client }

// Close shuts the client down. Later calls return the first result.
func (m *CacheManager) Close() error {
	m.closeOnce.Do(func() {
		if m.client == nil {
			return
		}
		m.closeErr = m.client.Close()
		if m.closeErr != nil {
			m.cfg.Logger.Error("memcached client shutdown failed", Fields{"error": m.closeErr.Error()})
			return
		}
		m.cfg.Logger.Info("memcached cache manager closed", Fields{"caches": m.caches.Size()})
	})
	return m.closeErr
}
