package memcached

import (
	"context"
	"math"
	"time"
)

// maxRelativeExpiration is the largest exptime memcached treats as relative;
// larger values are read as a unix timestamp.
const maxRelativeExpiration = 30 * 24 * time.Hour

// Client is the subset of memcached the caches rely on.
//
// Misses are not errors: Get reports (nil, false, nil), Add reports
// (false, nil) when the key exists, Delete ignores missing keys and
// Increment reports (0, false, nil) for a missing counter.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, exp time.Duration) error
	Add(ctx context.Context, key string, value []byte, exp time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Increment(ctx context.Context, key string, delta uint64) (uint64, bool, error)
	Touch(ctx context.Context, key string, exp time.Duration) error
	FlushAll(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// expirationSeconds converts exp to a memcached exptime. Non-positive values
// mean no expiry; sub-second values round up to one second. Absolute
// timestamps past the int32 range are clamped to its maximum.
func expirationSeconds(exp time.Duration) int32 {
	if exp <= 0 {
		return 0
	}
	secs := int64((exp + time.Second - 1) / time.Second)
	if exp <= maxRelativeExpiration {
		return int32(secs)
	}
	at := time.Now().Unix() + secs
	if at > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(at)
}
