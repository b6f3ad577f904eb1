package memcachedfake

import (
	"context"
	"testing"

	"github.com/goforj/memcached"
)

func TestFakeCountsOperations(t *testing.T) {
	f := New()
	books := f.Manager().Cache("books")

	_ = books.Put("1", []byte("Dune"))
	_, _, _ = books.Get("1")
	_, _, _ = books.Get("1")
	_, _ = books.GetOrLoad("2", func(context.Context) ([]byte, error) { return []byte("Emma"), nil })
	_ = f.Manager().Cache("authors").Evict("1")

	f.AssertCalled(t, memcached.OpGet, "books", "1", 2)
	f.AssertCalled(t, memcached.OpPut, "books", "1", 1)
	f.AssertCalled(t, memcached.OpGetOrLoad, "books", "2", 1)
	f.AssertNotCalled(t, memcached.OpGet, "books", "2")
	f.AssertTotal(t, memcached.OpEvict, 1)

	f.Reset()
	f.AssertTotal(t, memcached.OpGet, 0)
}

func TestFakeAppliesOptions(t *testing.T) {
	f := New(memcached.WithExpiration(0), memcached.WithPrefix("svc"))
	if got := f.Manager().Cache("x").Name(); got != "x" {
		t.Fatalf("unexpected cache name %q", got)
	}
	if err := f.Manager().Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
