// Package prometheus records cache operations as Prometheus metrics.
package prometheus

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goforj/memcached"
)

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5,
}

// Result label values.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultOK    = "ok"
	ResultError = "error"
)

// Observer implements memcached.Observer.
type Observer struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ memcached.Observer = (*Observer)(nil)

// NewObserver creates the metrics and registers them with reg.
func NewObserver(reg prometheus.Registerer) *Observer {
	o := &Observer{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memcached_cache_operations_total",
			Help: "Total number of cache operations by result",
		}, []string{"cache", "op", "result"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "memcached_cache_operation_duration_seconds",
			Help:    "Cache operation latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"cache", "op"}),
	}
	reg.MustRegister(o.ops, o.duration)
	return o
}

// OnCacheOp implements memcached.Observer.
func (o *Observer) OnCacheOp(_ context.Context, op, cache, _ string, hit bool, err error, dur time.Duration) {
	o.ops.WithLabelValues(cache, op, result(op, hit, err)).Inc()
	o.duration.WithLabelValues(cache, op).Observe(dur.Seconds())
}

func result(op string, hit bool, err error) string {
	switch {
	case err != nil:
		return ResultError
	case op == memcached.OpGet, op == memcached.OpGetOrLoad, op == memcached.OpPutIfAbsent:
		if hit {
			return ResultHit
		}
		return ResultMiss
	default:
		return ResultOK
	}
}
