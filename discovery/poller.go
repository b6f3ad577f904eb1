package discovery

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const defaultInterval = time.Minute

// Poller refreshes a memcache.ServerList from a NodeSource.
// Failed refreshes keep the previous node set.
type Poller struct {
	source   NodeSource
	servers  *memcache.ServerList
	interval time.Duration
	timeout  time.Duration
	onChange func(nodes []string)
	onError  func(err error)

	mu      sync.Mutex
	current []string
	started bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Option configures a Poller.
type Option func(*Poller)

// WithOnChange registers a callback invoked with the new node set.
func WithOnChange(fn func(nodes []string)) Option {
	return func(p *Poller) { p.onChange = fn }
}

// WithOnError registers a callback for background refresh failures.
func WithOnError(fn func(err error)) Option {
	return func(p *Poller) { p.onError = fn }
}

// WithRefreshTimeout bounds each background refresh.
func WithRefreshTimeout(d time.Duration) Option {
	return func(p *Poller) { p.timeout = d }
}

// NewPoller builds a poller; call Refresh for the first node set and Start
// for background polling.
func NewPoller(source NodeSource, servers *memcache.ServerList, interval time.Duration, opts ...Option) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	p := &Poller{
		source:   source,
		servers:  servers,
		interval: interval,
		timeout:  interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Refresh fetches the node set once and applies it when it changed.
func (p *Poller) Refresh(ctx context.Context) (bool, error) {
	nodes, err := p.source.Nodes(ctx)
	if err != nil {
		return false, err
	}
	if len(nodes) == 0 {
		return false, ErrNoNodes
	}
	nodes = slices.Clone(nodes)
	slices.Sort(nodes)

	p.mu.Lock()
	defer p.mu.Unlock()
	if slices.Equal(nodes, p.current) {
		return false, nil
	}
	if err := p.servers.SetServers(nodes...); err != nil {
		return false, err
	}
	p.current = nodes
	if p.onChange != nil {
		p.onChange(slices.Clone(nodes))
	}
	return true, nil
}

// Nodes returns the last applied node set.
func (p *Poller) Nodes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.current)
}

// Start launches background polling. Calling it twice is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	select {
	case <-p.stop:
		return
	default:
	}
	p.started = true
	go p.loop()
}

// Stop halts background polling and waits for it to exit. Safe to call more
// than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
		p.mu.Lock()
		started := p.started
		p.mu.Unlock()
		if started {
			<-p.done
		}
	})
}

func (p *Poller) loop() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
			_, err := p.Refresh(ctx)
			cancel()
			if err != nil && p.onError != nil {
				p.onError(err)
			}
		}
	}
}
