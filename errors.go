package memcached

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyServerList         = errors.New("memcached: server list is empty")
	ErrEmptyExpirations        = errors.New("memcached: expiration list is empty")
	ErrInvalidExpiration       = errors.New("memcached: expiration must be a non-negative number of seconds")
	ErrInvalidOperationTimeout = errors.New("memcached: operation timeout must be greater than zero")
	ErrInvalidRefreshInterval  = errors.New("memcached: refresh interval must be greater than zero")
	ErrUnknownMode             = errors.New("memcached: unknown client mode")
	ErrUnknownProtocol         = errors.New("memcached: unknown protocol")
	ErrClientClosed            = errors.New("memcached: client is closed")
	ErrNilClient               = errors.New("memcached: nil client")
)

// ConfigError reports a property value that could not be bound.
type ConfigError struct {
	Key   string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("memcached: invalid %s %q: %v", e.Key, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// LoadError wraps a failure returned by a GetOrLoad loader.
type LoadError struct {
	Cache string
	Key   string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("memcached: load %q in cache %q: %v", e.Key, e.Cache, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
