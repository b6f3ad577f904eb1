// Package memcachedfake provides an in-memory cache manager with call
// counting for tests of code that depends on named caches.
package memcachedfake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goforj/memcached"
)

type callKey struct {
	op    string
	cache string
	key   string
}

// Fake records every cache operation performed through its manager.
type Fake struct {
	manager *memcached.CacheManager

	mu     sync.Mutex
	counts map[callKey]int
}

// New creates a Fake over an in-memory client. Options are applied to the
// manager after the fake's own observer; do not pass WithObserver.
func New(opts ...memcached.Option) *Fake {
	f := &Fake{counts: make(map[callKey]int)}
	all := append([]memcached.Option{memcached.WithObserver(f)}, opts...)
	f.manager = memcached.NewCacheManager(memcached.NewMemoryClient(), all...)
	return f
}

// Manager returns the manager to inject into code under test.
func (f *Fake) Manager() *memcached.CacheManager { return f.manager }

// OnCacheOp implements memcached.Observer.
func (f *Fake) OnCacheOp(_ context.Context, op, cache, key string, _ bool, _ error, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[callKey{op: op, cache: cache, key: key}]++
}

// Reset clears recorded counts.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = make(map[callKey]int)
}

// Count returns calls of op on key in cache.
func (f *Fake) Count(op, cache, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[callKey{op: op, cache: cache, key: key}]
}

// Total returns calls of op across all caches and keys.
func (f *Fake) Total(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int
	for k, v := range f.counts {
		if k.op == op {
			sum += v
		}
	}
	return sum
}

// AssertCalled verifies key in cache was touched by op the expected number of times.
func (f *Fake) AssertCalled(t testing.TB, op, cache, key string, times int) {
	t.Helper()
	if got := f.Count(op, cache, key); got != times {
		t.Fatalf("expected %s %s/%q called %d times, got %d", op, cache, key, times, got)
	}
}

// AssertNotCalled ensures key in cache was never touched by op.
func (f *Fake) AssertNotCalled(t testing.TB, op, cache, key string) {
	t.Helper()
	if got := f.Count(op, cache, key); got != 0 {
		t.Fatalf("expected %s %s/%q not called, got %d", op, cache, key, got)
	}
}

// AssertTotal ensures the total call count for op matches times.
func (f *Fake) AssertTotal(t testing.TB, op string, times int) {
	t.Helper()
	if got := f.Total(op); got != times {
		t.Fatalf("expected %s total=%d, got %d", op, times, got)
	}
}
