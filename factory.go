package memcached

import (
	"context"
	"fmt"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/goforj/memcached/discovery"
)

// NewClient builds the client selected by props.Mode.
//
// Static mode spreads keys over props.Servers. Dynamic mode asks the first
// server for the cluster node list, fails when that first lookup fails, and
// then refreshes the list every props.RefreshInterval. Memory mode needs no
// servers.
//
// Example: static client
//
//	props := memcached.DefaultProperties()
//	props.Servers = []string{"127.0.0.1:11211"}
//	client, err := memcached.NewClient(ctx, props)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
func NewClient(ctx context.Context, props Properties, opts ...ClientOption) (Client, error) {
	props = props.withDefaults()
	if err := props.Validate(); err != nil {
		return nil, err
	}
	var cfg clientConfig
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	logger := loggerOrNop(cfg.logger)

	if props.Protocol == ProtocolBinary {
		logger.Warn("memcached binary protocol is not supported, using text", nil)
	}

	switch props.Mode {
	case ModeMemory:
		return newMemoryClient(), nil
	case ModeDynamic:
		return newDynamicClient(ctx, props, cfg, logger)
	default:
		servers := new(memcache.ServerList)
		if err := servers.SetServers(props.Servers...); err != nil {
			return nil, fmt.Errorf("memcached: servers: %w", err)
		}
		logger.Info("memcached client configured", Fields{
			"mode":    props.Mode.String(),
			"servers": props.Servers,
		})
		return newMemcacheClient(newMemcache(servers, props), nil, logger), nil
	}
}

func newDynamicClient(ctx context.Context, props Properties, cfg clientConfig, logger Logger) (Client, error) {
	source := cfg.nodeSource
	if source == nil {
		source = &discovery.ConfigEndpoint{Addr: props.Servers[0], Timeout: props.OperationTimeout}
	}
	servers := new(memcache.ServerList)
	poller := discovery.NewPoller(source, servers, props.RefreshInterval,
		discovery.WithRefreshTimeout(props.OperationTimeout),
		discovery.WithOnChange(func(nodes []string) {
			logger.Info("memcached cluster nodes changed", Fields{"nodes": nodes})
		}),
		discovery.WithOnError(func(err error) {
			logger.Warn("memcached cluster refresh failed", Fields{"error": err.Error()})
		}),
	)

	refreshCtx, cancel := context.WithTimeout(ctx, props.OperationTimeout)
	defer cancel()
	if _, err := poller.Refresh(refreshCtx); err != nil {
		return nil, fmt.Errorf("memcached: cluster discovery: %w", err)
	}
	poller.Start()
	logger.Info("memcached client configured", Fields{
		"mode":     props.Mode.String(),
		"endpoint": props.Servers[0],
		"interval": props.RefreshInterval.String(),
	})
	return newMemcacheClient(newMemcache(servers, props), poller, logger), nil
}

func newMemcache(servers memcache.ServerSelector, props Properties) *memcache.Client {
	mc := memcache.NewFromSelector(servers)
	mc.Timeout = props.OperationTimeout
	mc.MaxIdleConns = props.MaxIdleConns
	return mc
}

// New builds a client from props and a manager over it. The manager owns the
// client: Close on the manager closes it.
//
// Example: manager from properties
//
//	props, err := memcached.LoadProperties("application.yaml", os.LookupEnv)
//	if err != nil {
//		return err
//	}
//	manager, err := memcached.New(ctx, props)
//	if err != nil {
//		return err
//	}
//	defer manager.Close()
//	_ = manager.Cache("books").Put("isbn-1", []byte("Dune"))
func New(ctx context.Context, props Properties, opts ...Option) (*CacheManager, error) {
	var cfg ManagerConfig
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	clientOpts := append([]ClientOption{WithClientLogger(cfg.Logger)}, cfg.ClientOptions...)
	client, err := NewClient(ctx, props, clientOpts...)
	if err != nil {
		return nil, err
	}
	return NewCacheManager(client, append([]Option{WithProperties(props)}, opts...)...), nil
}
