package memcached

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/goforj/memcached/codec"
	"github.com/goforj/memcached/internal/memcachedtest"
)

type testBook struct {
	ISBN  string `json:"isbn" msgpack:"isbn"`
	Title string `json:"title" msgpack:"title"`
}

func newMemoryManager(t *testing.T, opts ...Option) *CacheManager {
	t.Helper()
	m := NewCacheManager(NewMemoryClient(), opts...)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestCachePutGetEvict(t *testing.T) {
	books := newMemoryManager(t).Cache("books")

	if _, ok, err := books.Get("isbn-1"); err != nil || ok {
		t.Fatalf("expected miss: ok=%v err=%v", ok, err)
	}
	if err := books.Put("isbn-1", []byte("Dune")); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, ok, err := books.Get("isbn-1")
	if err != nil || !ok || string(v) != "Dune" {
		t.Fatalf("get: %q ok=%v err=%v", v, ok, err)
	}
	if err := books.Evict("isbn-1"); err != nil {
		t.Fatalf("evict: %v", err)
	}
	if err := books.Evict("isbn-1"); err != nil {
		t.Fatalf("evict missing: %v", err)
	}
	if _, ok, _ := books.Get("isbn-1"); ok {
		t.Fatalf("expected miss after evict")
	}
}

func TestCachePutNilValue(t *testing.T) {
	books := newMemoryManager(t).Cache("books")
	if err := books.Put("empty", nil); err != nil {
		t.Fatalf("put nil: %v", err)
	}
	v, ok, err := books.Get("empty")
	if err != nil || !ok || len(v) != 0 {
		t.Fatalf("get nil value: %q ok=%v err=%v", v, ok, err)
	}
}

func TestCachePutIfAbsent(t *testing.T) {
	books := newMemoryManager(t).Cache("books")

	existing, ok, err := books.PutIfAbsent("isbn-1", []byte("Dune"))
	if err != nil || ok || existing != nil {
		t.Fatalf("first put: %q ok=%v err=%v", existing, ok, err)
	}
	existing, ok, err = books.PutIfAbsent("isbn-1", []byte("Emma"))
	if err != nil || !ok || string(existing) != "Dune" {
		t.Fatalf("second put: %q ok=%v err=%v", existing, ok, err)
	}
	if v, _, _ := books.Get("isbn-1"); string(v) != "Dune" {
		t.Fatalf("value overwritten: %q", v)
	}
}

func TestCacheNamesIsolateKeys(t *testing.T) {
	m := newMemoryManager(t)
	books, authors := m.Cache("books"), m.Cache("authors")

	if err := books.Put("1", []byte("Dune")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := authors.Put("1", []byte("Herbert")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if v, _, _ := books.Get("1"); string(v) != "Dune" {
		t.Fatalf("books[1] = %q", v)
	}
	if v, _, _ := authors.Get("1"); string(v) != "Herbert" {
		t.Fatalf("authors[1] = %q", v)
	}
}

func TestCacheClearInvalidatesOnlyItsNamespace(t *testing.T) {
	m := newMemoryManager(t)
	books, authors := m.Cache("books"), m.Cache("authors")

	_ = books.Put("1", []byte("Dune"))
	_ = books.Put("2", []byte("Emma"))
	_ = authors.Put("1", []byte("Herbert"))

	if err := books.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	for _, key := range []string{"1", "2"} {
		if _, ok, _ := books.Get(key); ok {
			t.Fatalf("books[%s] survived clear", key)
		}
	}
	if v, ok, _ := authors.Get("1"); !ok || string(v) != "Herbert" {
		t.Fatalf("authors cleared too: %q ok=%v", v, ok)
	}

	if err := books.Put("1", []byte("Dune Messiah")); err != nil {
		t.Fatalf("put after clear: %v", err)
	}
	if v, _, _ := books.Get("1"); string(v) != "Dune Messiah" {
		t.Fatalf("books[1] after clear = %q", v)
	}
}

func TestCacheClearBeforeAnyWrite(t *testing.T) {
	books := newMemoryManager(t).Cache("books")
	if err := books.Clear(); err != nil {
		t.Fatalf("clear on fresh cache: %v", err)
	}
}

func TestCacheNamespaceSeed(t *testing.T) {
	client := NewMemoryClient()
	m := NewCacheManager(client, WithPrefix("app"))
	defer m.Close()
	ctx := context.Background()

	before := time.Now().UnixMilli()
	if err := m.Cache("books").Put("1", []byte("Dune")); err != nil {
		t.Fatalf("put: %v", err)
	}
	raw, ok, err := client.Get(ctx, "app:books:namespace")
	if err != nil || !ok {
		t.Fatalf("namespace key missing: ok=%v err=%v", ok, err)
	}
	seed, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || seed < before {
		t.Fatalf("namespace seed = %q", raw)
	}
	if _, ok, _ := client.Get(ctx, "app:books:"+string(raw)+":1"); !ok {
		t.Fatalf("data key not under namespace value %s", raw)
	}
}

func TestCacheGetOrLoadLoadsOnce(t *testing.T) {
	books := newMemoryManager(t).Cache("books")

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("Dune"), nil
	}

	const workers = 16
	var wg sync.WaitGroup
	results := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := books.GetOrLoad("isbn-1", load)
			results[i], errs[i] = string(v), err
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range results {
		if errs[i] != nil || results[i] != "Dune" {
			t.Fatalf("worker %d: %q %v", i, results[i], errs[i])
		}
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("loader called %d times", n)
	}
	if v, ok, _ := books.Get("isbn-1"); !ok || string(v) != "Dune" {
		t.Fatalf("loaded value not stored: %q ok=%v", v, ok)
	}
}

func TestCacheGetOrLoadCallerCancelDoesNotFailOthers(t *testing.T) {
	books := newMemoryManager(t).Cache("books")

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	load := func(ctx context.Context) ([]byte, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []byte("Dune"), nil
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := books.GetOrLoadCtx(firstCtx, "isbn-1", load)
		firstErr <- err
	}()
	<-started

	type result struct {
		v   []byte
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, err := books.GetOrLoadCtx(context.Background(), "isbn-1", load)
		second <- result{v, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller: %v", err)
	}
	close(release)

	res := <-second
	if res.err != nil || string(res.v) != "Dune" {
		t.Fatalf("second caller: %q %v", res.v, res.err)
	}
	if v, ok, _ := books.Get("isbn-1"); !ok || string(v) != "Dune" {
		t.Fatalf("loaded value not stored: %q ok=%v", v, ok)
	}
}

func TestCacheGetOrLoadErrors(t *testing.T) {
	books := newMemoryManager(t).Cache("books")
	boom := errors.New("boom")

	_, err := books.GetOrLoad("isbn-1", func(context.Context) ([]byte, error) { return nil, boom })
	var loadErr *LoadError
	if !errors.As(err, &loadErr) || loadErr.Cache != "books" || loadErr.Key != "isbn-1" {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("LoadError should wrap loader error: %v", err)
	}
	if _, ok, _ := books.Get("isbn-1"); ok {
		t.Fatalf("failed load must not store a value")
	}

	if _, err := books.GetOrLoad("isbn-1", nil); !errors.As(err, &loadErr) {
		t.Fatalf("nil loader: %v", err)
	}
}

func TestCacheObserver(t *testing.T) {
	obs := &recordingObserver{}
	books := newMemoryManager(t, WithObserver(obs)).Cache("books")

	_ = books.Put("1", []byte("Dune"))
	_, _, _ = books.Get("1")
	_, _, _ = books.Get("2")
	_, _, _ = books.PutIfAbsent("1", []byte("Emma"))
	_, _ = books.GetOrLoad("3", func(context.Context) ([]byte, error) { return []byte("x"), nil })
	_ = books.Evict("1")
	_ = books.Clear()

	ops := obs.snapshot()
	want := []struct {
		op  string
		hit bool
	}{
		{OpPut, false}, {OpGet, true}, {OpGet, false}, {OpPutIfAbsent, true},
		{OpGetOrLoad, false}, {OpEvict, false}, {OpClear, true},
	}
	if len(ops) != len(want) {
		t.Fatalf("observed %d ops: %+v", len(ops), ops)
	}
	for i, w := range want {
		if ops[i].op != w.op || ops[i].hit != w.hit || ops[i].cache != "books" || ops[i].err != nil {
			t.Fatalf("op %d = %+v, want %s hit=%v", i, ops[i], w.op, w.hit)
		}
	}
}

func TestCacheTypedHelpers(t *testing.T) {
	books := newMemoryManager(t).Cache("books")
	ctx := context.Background()

	if err := PutJSON(ctx, books, "json", testBook{ISBN: "1", Title: "Dune"}); err != nil {
		t.Fatalf("put json: %v", err)
	}
	got, ok, err := GetJSON[testBook](ctx, books, "json")
	if err != nil || !ok || got.Title != "Dune" {
		t.Fatalf("get json: %+v ok=%v err=%v", got, ok, err)
	}
	if _, ok, err := GetJSON[testBook](ctx, books, "missing"); err != nil || ok {
		t.Fatalf("get json miss: ok=%v err=%v", ok, err)
	}

	calls := 0
	load := func(context.Context) (testBook, error) {
		calls++
		return testBook{ISBN: "2", Title: "Emma"}, nil
	}
	for i := 0; i < 2; i++ {
		b, err := GetOrLoadValue(ctx, books, "msgpack", codec.Msgpack[testBook]{}, load)
		if err != nil || b.Title != "Emma" {
			t.Fatalf("get or load: %+v %v", b, err)
		}
	}
	if calls != 1 {
		t.Fatalf("loader called %d times", calls)
	}

	_ = books.Put("broken", []byte("{"))
	if _, _, err := GetJSON[testBook](ctx, books, "broken"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestCacheOverMemcachedServer(t *testing.T) {
	srv := memcachedtest.NewServer(t)
	mc := memcache.New(srv.Addr())
	m := NewCacheManager(newMemcacheClient(mc, nil, nil),
		WithPrefix("app"),
		WithExpirations(map[string]time.Duration{"books": 90 * time.Second}),
	)
	defer m.Close()

	books := m.Cache("books")
	if err := books.Put("isbn 1", []byte("Dune")); err != nil {
		t.Fatalf("put: %v", err)
	}
	var dataKey string
	for _, key := range srv.Keys() {
		if strings.HasSuffix(key, ":isbn1") {
			dataKey = key
		}
	}
	if dataKey == "" {
		t.Fatalf("data key not found in %v", srv.Keys())
	}
	if exp, _ := srv.Expiration(dataKey); exp != 90 {
		t.Fatalf("data exptime = %d", exp)
	}
	if exp, ok := srv.Expiration("app:books:namespace"); !ok || exp != 0 {
		t.Fatalf("namespace exptime = %d ok=%v", exp, ok)
	}

	if err := books.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := books.Get("isbn 1"); ok {
		t.Fatalf("expected miss after clear")
	}
	if _, ok := srv.Value(dataKey); !ok {
		t.Fatalf("clear should not delete data keys")
	}

	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, _, err := books.Get("isbn 1"); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("get after close: %v", err)
	}
}

func TestCacheLongKeysOverMemcachedServer(t *testing.T) {
	srv := memcachedtest.NewServer(t)
	m := NewCacheManager(newMemcacheClient(memcache.New(srv.Addr()), nil, nil))
	defer m.Close()

	books := m.Cache("books")
	long := strings.Repeat("isbn", 100)
	if err := books.Put(long, []byte("Dune")); err != nil {
		t.Fatalf("put long key: %v", err)
	}
	if v, ok, err := books.Get(long); err != nil || !ok || string(v) != "Dune" {
		t.Fatalf("get long key: %q ok=%v err=%v", v, ok, err)
	}
	for _, key := range srv.Keys() {
		if len(key) > maxKeyLength {
			t.Fatalf("stored key longer than %d: %q", maxKeyLength, key)
		}
	}
}
