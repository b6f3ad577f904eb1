package memcached

import (
	"context"
	"sync"
	"time"
)

type logEntry struct {
	level  string
	msg    string
	fields Fields
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string, f Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, fields: f})
}

func (l *recordingLogger) Debug(msg string, f Fields) { l.add("debug", msg, f) }
func (l *recordingLogger) Info(msg string, f Fields)  { l.add("info", msg, f) }
func (l *recordingLogger) Warn(msg string, f Fields)  { l.add("warn", msg, f) }
func (l *recordingLogger) Error(msg string, f Fields) { l.add("error", msg, f) }

func (l *recordingLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}

type observedOp struct {
	op    string
	cache string
	key   string
	hit   bool
	err   error
}

type recordingObserver struct {
	mu  sync.Mutex
	ops []observedOp
}

func (o *recordingObserver) OnCacheOp(_ context.Context, op, cache, key string, hit bool, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, observedOp{op: op, cache: cache, key: key, hit: hit, err: err})
}

func (o *recordingObserver) snapshot() []observedOp {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]observedOp(nil), o.ops...)
}

// countingClient counts Close calls on top of a real client.
type countingClient struct {
	Client
	mu     sync.Mutex
	closes int
}

func (c *countingClient) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	return c.Client.Close()
}

func mapLookup(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}
