package memcached

import (
	"context"
	"time"

	"github.com/goforj/memcached/codec"
)

// GetValue reads key and decodes it with cd.
func GetValue[T any](ctx context.Context, c *Cache, key string, cd codec.Codec[T]) (T, bool, error) {
	var zero T
	body, ok, err := c.GetCtx(ctx, key)
	if err != nil || !ok {
		return zero, ok, err
	}
	v, err := cd.Decode(body)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// PutValue encodes v with cd and stores it under key.
func PutValue[T any](ctx context.Context, c *Cache, key string, v T, cd codec.Codec[T]) error {
	body, err := cd.Encode(v)
	if err != nil {
		return err
	}
	return c.PutCtx(ctx, key, body)
}

// GetOrLoadValue is GetOrLoad for typed values.
//
// Example: load a struct through msgpack
//
//	type Book struct{ Title string }
//	books := manager.Cache("books")
//	b, _ := memcached.GetOrLoadValue(ctx, books, "isbn-1", codec.Msgpack[Book]{},
//		func(ctx context.Context) (Book, error) { return Book{Title: "Dune"}, nil })
//	fmt.Println(b.Title) // Dune
func GetOrLoadValue[T any](ctx context.Context, c *Cache, key string, cd codec.Codec[T], load func(context.Context) (T, error)) (T, error) {
	var zero T
	var loader func(context.Context) ([]byte, error)
	if load != nil {
		loader = func(ctx context.Context) ([]byte, error) {
			v, err := load(ctx)
			if err != nil {
				return nil, err
			}
			return cd.Encode(v)
		}
	}
	start := time.Now()
	body, hit, err := c.getOrLoad(ctx, key, loader)
	c.observe(ctx, OpGetOrLoad, key, hit, err, start)
	if err != nil {
		return zero, err
	}
	return cd.Decode(body)
}

// GetJSON reads key as JSON into T.
func GetJSON[T any](ctx context.Context, c *Cache, key string) (T, bool, error) {
	return GetValue(ctx, c, key, codec.JSON[T]{})
}

// PutJSON stores v as JSON under key.
func PutJSON[T any](ctx context.Context, c *Cache, key string, v T) error {
	return PutValue(ctx, c, key, v, codec.JSON[T]{})
}
