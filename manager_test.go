package memcached

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"
)

func TestManagerCacheIsMemoizedUnderConcurrency(t *testing.T) {
	m := newMemoryManager(t)

	const workers = 64
	got := make([]*Cache, workers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			got[i] = m.Cache("books")
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 1; i < workers; i++ {
		if got[i] != got[0] {
			t.Fatalf("worker %d got a different cache instance", i)
		}
	}
	if names := m.CacheNames(); !slices.Equal(names, []string{"books"}) {
		t.Fatalf("cache names = %v", names)
	}
}

func TestManagerExpirationResolution(t *testing.T) {
	m := newMemoryManager(t,
		WithExpiration(2*time.Minute),
		WithExpirations(map[string]time.Duration{
			"books":   30 * time.Second,
			"authors": NoExpiration,
		}),
	)

	tests := map[string]time.Duration{
		"books":   30 * time.Second,
		"authors": NoExpiration,
		"other":   2 * time.Minute,
	}
	for name, want := range tests {
		if got := m.Expiration(name); got != want {
			t.Fatalf("Expiration(%q) = %v, want %v", name, got, want)
		}
		if got := m.Cache(name).Expiration(); got != want {
			t.Fatalf("Cache(%q).Expiration() = %v, want %v", name, got, want)
		}
	}
}

func TestManagerDefaults(t *testing.T) {
	m := newMemoryManager(t)
	if got := m.Expiration("any"); got != 60*time.Second {
		t.Fatalf("default expiration = %v", got)
	}
	c := m.Cache("any")
	if c.Name() != "any" || c.prefix != "memcached:spring-boot" || c.namespace != "namespace" {
		t.Fatalf("unexpected cache settings: %+v", c)
	}
	if c.Client() != m.Client() {
		t.Fatalf("caches must share the manager client")
	}
}

func TestManagerWithProperties(t *testing.T) {
	p := DefaultProperties()
	p.Prefix = "app"
	if err := p.SetExpirations("300 books:60"); err != nil {
		t.Fatalf("set expirations: %v", err)
	}
	m := newMemoryManager(t, WithProperties(p))

	if m.Expiration("books") != time.Minute || m.Expiration("other") != 5*time.Minute {
		t.Fatalf("expirations not applied: %v %v", m.Expiration("books"), m.Expiration("other"))
	}
	if m.Cache("books").prefix != "app" {
		t.Fatalf("prefix not applied")
	}
}

func TestManagerExpirationsAreCopied(t *testing.T) {
	table := map[string]time.Duration{"books": time.Second}
	m := newMemoryManager(t, WithExpirations(table))
	table["books"] = time.Hour
	if got := m.Expiration("books"); got != time.Second {
		t.Fatalf("expiration follows caller map: %v", got)
	}
}

func TestManagerCacheNamesSorted(t *testing.T) {
	m := newMemoryManager(t)
	for _, name := range []string{"c", "a", "b", "a"} {
		m.Cache(name)
	}
	if names := m.CacheNames(); !slices.Equal(names, []string{"a", "b", "c"}) {
		t.Fatalf("cache names = %v", names)
	}
}

func TestManagerCloseOnce(t *testing.T) {
	client := &countingClient{Client: NewMemoryClient()}
	logger := &recordingLogger{}
	m := NewCacheManager(client, WithLogger(logger))
	m.Cache("books")

	for i := 0; i < 3; i++ {
		if err := m.Close(); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}
	if client.closes != 1 {
		t.Fatalf("client closed %d times", client.closes)
	}
	if !logger.has("info", "memcached cache manager closed") {
		t.Fatalf("expected shutdown log, got %+v", logger.entries)
	}
	if !logger.has("debug", "memcached cache created") {
		t.Fatalf("expected creation log, got %+v", logger.entries)
	}
	if err := m.Cache("books").Put("1", nil); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("put after close: %v", err)
	}
}

func TestManagerNilClientClose(t *testing.T) {
	m := NewCacheManager(nil)
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestManagerNilClientOperations(t *testing.T) {
	books := NewCacheManager(nil).Cache("books")

	if _, _, err := books.Get("k"); !errors.Is(err, ErrNilClient) {
		t.Fatalf("get: %v", err)
	}
	if err := books.Put("k", []byte("v")); !errors.Is(err, ErrNilClient) {
		t.Fatalf("put: %v", err)
	}
	if _, _, err := books.PutIfAbsent("k", []byte("v")); !errors.Is(err, ErrNilClient) {
		t.Fatalf("put if absent: %v", err)
	}
	if err := books.Evict("k"); !errors.Is(err, ErrNilClient) {
		t.Fatalf("evict: %v", err)
	}
	if err := books.Clear(); !errors.Is(err, ErrNilClient) {
		t.Fatalf("clear: %v", err)
	}
	load := func(context.Context) ([]byte, error) { return []byte("v"), nil }
	if _, err := books.GetOrLoad("k", load); !errors.Is(err, ErrNilClient) {
		t.Fatalf("get or load: %v", err)
	}
}
