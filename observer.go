package memcached

import (
	"context"
	"time"
)

// Observer receives events for cache operations.
// It is called from Cache methods after each operation completes.
type Observer interface {
	OnCacheOp(ctx context.Context, op string, cache string, key string, hit bool, err error, dur time.Duration)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, op string, cache string, key string, hit bool, err error, dur time.Duration)

// OnCacheOp implements Observer.
func (f ObserverFunc) OnCacheOp(ctx context.Context, op string, cache string, key string, hit bool, err error, dur time.Duration) {
	if f == nil {
		return
	}
	f(ctx, op, cache, key, hit, err, dur)
}

// Operation names reported to observers.
const (
	OpGet         = "get"
	OpPut         = "put"
	OpPutIfAbsent = "put_if_absent"
	OpEvict       = "evict"
	OpClear       = "clear"
	OpGetOrLoad   = "get_or_load"
)
