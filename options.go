package memcached

import (
	"maps"
	"time"

	"github.com/goforj/memcached/discovery"
)

// ManagerConfig configures a CacheManager.
type ManagerConfig struct {
	// Expiration applies to caches without an entry in Expirations.
	Expiration  time.Duration
	Expirations map[string]time.Duration

	Prefix    string
	Namespace string

	Logger   Logger
	Observer Observer

	// ClientOptions are used by New when it builds the client.
	ClientOptions []ClientOption
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.Expiration == 0 {
		c.Expiration = defaultExpiration
	}
	if c.Prefix == "" {
		c.Prefix = defaultPrefix
	}
	if c.Namespace == "" {
		c.Namespace = defaultNamespace
	}
	c.Logger = loggerOrNop(c.Logger)
	return c
}

// Option mutates ManagerConfig when constructing a CacheManager.
type Option func(ManagerConfig) ManagerConfig

// WithExpiration sets the default expiration for all caches.
func WithExpiration(d time.Duration) Option {
	return func(cfg ManagerConfig) ManagerConfig {
		cfg.Expiration = d
		return cfg
	}
}

// WithExpirations sets per-cache expirations. The map is copied.
func WithExpirations(expirations map[string]time.Duration) Option {
	return func(cfg ManagerConfig) ManagerConfig {
		cfg.Expirations = maps.Clone(expirations)
		return cfg
	}
}

// WithPrefix sets the key prefix shared by all caches.
func WithPrefix(prefix string) Option {
	return func(cfg ManagerConfig) ManagerConfig {
		cfg.Prefix = prefix
		return cfg
	}
}

// WithNamespace sets the name of the per-cache invalidation counter key.
func WithNamespace(namespace string) Option {
	return func(cfg ManagerConfig) ManagerConfig {
		cfg.Namespace = namespace
		return cfg
	}
}

// WithLogger sets the logger used by the manager, its caches and, through
// New, the client.
func WithLogger(logger Logger) Option {
	return func(cfg ManagerConfig) ManagerConfig {
		cfg.Logger = logger
		return cfg
	}
}

// WithObserver attaches an observer to every cache.
func WithObserver(o Observer) Option {
	return func(cfg ManagerConfig) ManagerConfig {
		cfg.Observer = o
		return cfg
	}
}

// WithProperties copies the expiration, prefix and namespace settings.
func WithProperties(p Properties) Option {
	return func(cfg ManagerConfig) ManagerConfig {
		p = p.withDefaults()
		cfg.Expiration = p.Expiration
		cfg.Expirations = maps.Clone(p.Expirations)
		cfg.Prefix = p.Prefix
		cfg.Namespace = p.Namespace
		return cfg
	}
}

// WithClientOptions forwards options to NewClient when New builds the client.
func WithClientOptions(opts ...ClientOption) Option {
	return func(cfg ManagerConfig) ManagerConfig {
		cfg.ClientOptions = append(cfg.ClientOptions, opts...)
		return cfg
	}
}

type clientConfig struct {
	logger     Logger
	nodeSource discovery.NodeSource
}

// ClientOption mutates the client settings that are not Properties.
type ClientOption func(clientConfig) clientConfig

// WithClientLogger sets the client logger.
func WithClientLogger(logger Logger) ClientOption {
	return func(cfg clientConfig) clientConfig {
		cfg.logger = logger
		return cfg
	}
}

// WithNodeSource replaces the dynamic mode node source. By default the first
// server is queried as an ElastiCache configuration endpoint.
func WithNodeSource(source discovery.NodeSource) ClientOption {
	return func(cfg clientConfig) clientConfig {
		cfg.nodeSource = source
		return cfg
	}
}
