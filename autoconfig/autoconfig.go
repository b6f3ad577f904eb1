// Package autoconfig wires a memcached cache manager from configuration when
// the application selects it, and provides lifecycle hooks for it.
package autoconfig

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/goforj/memcached"
)

// CacheType is the cache.type value that selects memcached.
const CacheType = "memcached"

var (
	ErrNotActivated      = errors.New("autoconfig: memcached cache not selected")
	ErrHealthcheckFailed = errors.New("autoconfig: memcached healthcheck failed")
)

// Environment describes where configuration comes from.
type Environment struct {
	// ConfigPath is an optional YAML file.
	ConfigPath string
	// Lookup resolves environment variables; os.LookupEnv in production.
	Lookup memcached.LookupFunc
	Logger memcached.Logger
	// Options are applied to the manager after the configured properties.
	Options []memcached.Option
}

// Result is an activated configuration.
type Result struct {
	Properties memcached.Properties
	Manager    *memcached.CacheManager
}

// Activated reports whether the memcached cache manager should be built:
// either no cache type is configured, or it is "memcached".
func Activated(env Environment) (bool, error) {
	cacheType, defined, err := memcached.LookupCacheType(env.ConfigPath, env.Lookup)
	if err != nil {
		return false, err
	}
	return !defined || strings.EqualFold(cacheType, CacheType), nil
}

// Configure binds properties and builds the manager. It returns
// ErrNotActivated when another cache type is selected.
//
// Example:
//
//	res, err := autoconfig.Configure(ctx, autoconfig.Environment{
//		ConfigPath: "application.yaml",
//		Lookup:     os.LookupEnv,
//	})
//	if err != nil {
//		return err
//	}
//	defer autoconfig.Shutdown(res.Manager)(ctx)
func Configure(ctx context.Context, env Environment) (*Result, error) {
	ok, err := Activated(env)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotActivated
	}
	props, err := memcached.LoadProperties(env.ConfigPath, env.Lookup)
	if err != nil {
		return nil, err
	}
	opts := make([]memcached.Option, 0, len(env.Options)+1)
	if env.Logger != nil {
		opts = append(opts, memcached.WithLogger(env.Logger))
	}
	opts = append(opts, env.Options...)
	manager, err := memcached.New(ctx, props, opts...)
	if err != nil {
		return nil, err
	}
	return &Result{Properties: props, Manager: manager}, nil
}

// Shutdown returns a hook that closes c, typically the cache manager.
func Shutdown(c io.Closer) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return c.Close()
	}
}

// Healthcheck returns a closure that pings memcached for health endpoints.
func Healthcheck(client memcached.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if client == nil {
			return ErrHealthcheckFailed
		}
		if err := client.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
