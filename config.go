package memcached

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	defaultServer           = "localhost:11211"
	defaultPort             = "11211"
	defaultExpiration       = 60 * time.Second
	defaultPrefix           = "memcached:spring-boot"
	defaultNamespace        = "namespace"
	defaultOperationTimeout = 2500 * time.Millisecond
	defaultRefreshInterval  = time.Minute
	defaultMaxIdleConns     = 2
)

// NoExpiration stores entries without an expiry time.
const NoExpiration time.Duration = -1

// Properties holds the settings used to build a client and a cache manager.
type Properties struct {
	// Servers lists host:port pairs. In dynamic mode the first entry is the
	// cluster configuration endpoint.
	Servers []string

	Mode Mode

	// Expiration is the default entry lifetime. Zero means "use the default"
	// (60s); use NoExpiration to keep entries until evicted.
	Expiration time.Duration

	// Expirations overrides Expiration per cache name.
	Expirations map[string]time.Duration

	// Prefix is prepended to every key written by the caches.
	Prefix string

	// Namespace names the per-cache key holding the invalidation counter.
	//
	// Deprecated: the value is always normalized to "namespace".
	Namespace string

	Protocol Protocol

	// OperationTimeout bounds every read/write on a memcached connection.
	OperationTimeout time.Duration

	// RefreshInterval controls how often dynamic mode polls for cluster changes.
	RefreshInterval time.Duration

	// MaxIdleConns is the number of idle connections kept per node.
	MaxIdleConns int
}

// DefaultProperties returns Properties populated with defaults.
func DefaultProperties() Properties {
	return Properties{}.withDefaults()
}

func (p Properties) withDefaults() Properties {
	if len(p.Servers) == 0 {
		p.Servers = []string{defaultServer}
	}
	if p.Mode == "" {
		p.Mode = ModeStatic
	}
	if p.Expiration == 0 {
		p.Expiration = defaultExpiration
	}
	if p.Prefix == "" {
		p.Prefix = defaultPrefix
	}
	// Any configured namespace collapses to the fixed key name.
	p.Namespace = defaultNamespace
	if p.Protocol == "" {
		p.Protocol = ProtocolText
	}
	if p.OperationTimeout == 0 {
		p.OperationTimeout = defaultOperationTimeout
	}
	if p.RefreshInterval == 0 {
		p.RefreshInterval = defaultRefreshInterval
	}
	if p.MaxIdleConns <= 0 {
		p.MaxIdleConns = defaultMaxIdleConns
	}
	return p
}

// SetServers replaces the server list from a comma-separated host:port value.
// Entries without a port get 11211.
func (p *Properties) SetServers(value string) error {
	servers, err := ParseServers(value)
	if err != nil {
		return err
	}
	p.Servers = servers
	return nil
}

// SetMode parses and sets the client mode.
func (p *Properties) SetMode(value string) error {
	mode, err := ParseMode(value)
	if err != nil {
		return err
	}
	p.Mode = mode
	return nil
}

// SetProtocol parses and sets the wire protocol.
func (p *Properties) SetProtocol(value string) error {
	protocol, err := ParseProtocol(value)
	if err != nil {
		return err
	}
	p.Protocol = protocol
	return nil
}

// SetExpirations parses an expirations value (see ParseExpirations). A bare
// token replaces the global Expiration; name:seconds tokens replace the
// per-name table.
func (p *Properties) SetExpirations(value string) error {
	spec, err := ParseExpirations(value)
	if err != nil {
		return err
	}
	if spec.HasDefault {
		p.Expiration = spec.Default
	}
	p.Expirations = spec.PerName
	return nil
}

// SetOperationTimeout sets the per-operation timeout; it must be positive.
func (p *Properties) SetOperationTimeout(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidOperationTimeout
	}
	p.OperationTimeout = d
	return nil
}

// Validate reports every invalid setting at once.
func (p Properties) Validate() error {
	var errs []error
	if p.Mode != ModeMemory {
		if len(p.Servers) == 0 {
			errs = append(errs, ErrEmptyServerList)
		}
		for _, server := range p.Servers {
			if _, err := normalizeServer(server); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if p.Mode != "" && !p.Mode.valid() {
		errs = append(errs, &ConfigError{Key: "mode", Value: string(p.Mode), Err: ErrUnknownMode})
	}
	if p.Protocol != "" && !p.Protocol.valid() {
		errs = append(errs, &ConfigError{Key: "protocol", Value: string(p.Protocol), Err: ErrUnknownProtocol})
	}
	if p.Expiration < 0 && p.Expiration != NoExpiration {
		errs = append(errs, &ConfigError{Key: "expiration", Value: p.Expiration.String(), Err: ErrInvalidExpiration})
	}
	for name, d := range p.Expirations {
		if d < 0 && d != NoExpiration {
			errs = append(errs, &ConfigError{Key: "expirations." + name, Value: d.String(), Err: ErrInvalidExpiration})
		}
	}
	if p.OperationTimeout < 0 {
		errs = append(errs, ErrInvalidOperationTimeout)
	}
	if p.Mode == ModeDynamic && p.RefreshInterval < 0 {
		errs = append(errs, ErrInvalidRefreshInterval)
	}
	return errors.Join(errs...)
}

// ParseServers splits a comma-separated server list and normalizes each
// entry to host:port.
func ParseServers(value string) ([]string, error) {
	if strings.TrimSpace(value) == "" {
		return nil, ErrEmptyServerList
	}
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(parts) == 0 {
		return nil, ErrEmptyServerList
	}
	servers := make([]string, 0, len(parts))
	for _, part := range parts {
		server, err := normalizeServer(part)
		if err != nil {
			return nil, err
		}
		servers = append(servers, server)
	}
	return servers, nil
}

func normalizeServer(server string) (string, error) {
	server = strings.TrimSpace(server)
	if server == "" {
		return "", &ConfigError{Key: "servers", Value: server, Err: errors.New("empty address")}
	}
	host, port, err := net.SplitHostPort(server)
	if err != nil {
		// Bare host: retry with the default port.
		host, port, err = net.SplitHostPort(net.JoinHostPort(server, defaultPort))
		if err != nil {
			return "", &ConfigError{Key: "servers", Value: server, Err: err}
		}
	}
	if host == "" {
		return "", &ConfigError{Key: "servers", Value: server, Err: errors.New("missing host")}
	}
	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 || n > 65535 {
		return "", &ConfigError{Key: "servers", Value: server, Err: fmt.Errorf("invalid port %q", port)}
	}
	return net.JoinHostPort(host, port), nil
}
