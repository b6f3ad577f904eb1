package memcached

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LookupFunc resolves an environment variable; os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Environment variable names bound by LoadProperties.
const (
	EnvServers          = "MEMCACHED_CACHE_SERVERS"
	EnvMode             = "MEMCACHED_CACHE_MODE"
	EnvExpiration       = "MEMCACHED_CACHE_EXPIRATION"
	EnvExpirations      = "MEMCACHED_CACHE_EXPIRATIONS"
	EnvPrefix           = "MEMCACHED_CACHE_PREFIX"
	EnvNamespace        = "MEMCACHED_CACHE_NAMESPACE"
	EnvProtocol         = "MEMCACHED_CACHE_PROTOCOL"
	EnvOperationTimeout = "MEMCACHED_CACHE_OPERATION_TIMEOUT"
	EnvRefreshInterval  = "MEMCACHED_CACHE_REFRESH_INTERVAL"
	EnvCacheType        = "CACHE_TYPE"
)

type document struct {
	Cache struct {
		Type string `yaml:"type"`
	} `yaml:"cache"`
	Memcached struct {
		Cache propertiesDocument `yaml:"cache"`
	} `yaml:"memcached"`
}

type propertiesDocument struct {
	Servers          stringList `yaml:"servers"`
	Mode             string     `yaml:"mode"`
	Expiration       string     `yaml:"expiration"`
	Expirations      stringList `yaml:"expirations"`
	Prefix           string     `yaml:"prefix"`
	Namespace        string     `yaml:"namespace"`
	Protocol         string     `yaml:"protocol"`
	OperationTimeout string     `yaml:"operation-timeout"`
	RefreshInterval  string     `yaml:"refresh-interval"`
}

// stringList accepts either a scalar ("a:1,b:2") or a sequence and keeps the
// comma-joined form so both go through the same parser.
type stringList string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = stringList(strings.Join(items, ","))
		return nil
	case yaml.ScalarNode:
		*l = stringList(node.Value)
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list", node.Line)
	}
}

// LoadProperties binds Properties from an optional YAML file and environment
// overrides. An empty path skips the file; a nil lookup skips the environment.
// Environment values win over the file. The result has defaults applied and
// is validated.
//
// YAML layout:
//
//	memcached:
//	  cache:
//	    servers: cache-1:11211, cache-2:11211
//	    mode: static
//	    expirations: 300, books:60
//	    prefix: app
//	    protocol: text
//	    operation-timeout: 2500
func LoadProperties(path string, lookup LookupFunc) (Properties, error) {
	doc, err := readDocument(path)
	if err != nil {
		return Properties{}, err
	}
	raw := doc.Memcached.Cache
	if lookup != nil {
		raw = raw.overlay(lookup)
	}

	var props Properties
	if err := raw.bind(&props); err != nil {
		return Properties{}, err
	}
	props = props.withDefaults()
	if err := props.Validate(); err != nil {
		return Properties{}, err
	}
	return props, nil
}

// LookupCacheType returns the configured cache type, reporting whether one is
// defined at all. CACHE_TYPE wins over cache.type in the file.
func LookupCacheType(path string, lookup LookupFunc) (string, bool, error) {
	if lookup != nil {
		if v, ok := lookup(EnvCacheType); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true, nil
		}
	}
	doc, err := readDocument(path)
	if err != nil {
		return "", false, err
	}
	v := strings.TrimSpace(doc.Cache.Type)
	return v, v != "", nil
}

func readDocument(path string) (document, error) {
	var doc document
	if path == "" {
		return doc, nil
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("memcached: read properties: %w", err)
	}
	if err := yaml.Unmarshal(body, &doc); err != nil {
		return doc, fmt.Errorf("memcached: parse properties %s: %w", path, err)
	}
	return doc, nil
}

func (d propertiesDocument) overlay(lookup LookupFunc) propertiesDocument {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	servers, expirations := string(d.Servers), string(d.Expirations)
	set(&servers, EnvServers)
	set(&d.Mode, EnvMode)
	set(&d.Expiration, EnvExpiration)
	set(&expirations, EnvExpirations)
	set(&d.Prefix, EnvPrefix)
	set(&d.Namespace, EnvNamespace)
	set(&d.Protocol, EnvProtocol)
	set(&d.OperationTimeout, EnvOperationTimeout)
	set(&d.RefreshInterval, EnvRefreshInterval)
	d.Servers, d.Expirations = stringList(servers), stringList(expirations)
	return d
}

func (d propertiesDocument) bind(p *Properties) error {
	var errs []error
	if v := string(d.Servers); v != "" {
		errs = append(errs, p.SetServers(v))
	}
	if d.Mode != "" {
		errs = append(errs, p.SetMode(d.Mode))
	}
	if d.Expiration != "" {
		exp, err := parseDuration(d.Expiration, time.Second)
		if err != nil {
			errs = append(errs, &ConfigError{Key: "expiration", Value: d.Expiration, Err: err})
		} else {
			if exp == 0 {
				exp = NoExpiration
			}
			p.Expiration = exp
		}
	}
	// expirations binds after expiration so a bare token in the list wins.
	if v := string(d.Expirations); v != "" {
		errs = append(errs, p.SetExpirations(v))
	}
	if d.Prefix != "" {
		p.Prefix = d.Prefix
	}
	if d.Namespace != "" {
		p.Namespace = d.Namespace
	}
	if d.Protocol != "" {
		errs = append(errs, p.SetProtocol(d.Protocol))
	}
	if d.OperationTimeout != "" {
		timeout, err := parseDuration(d.OperationTimeout, time.Millisecond)
		if err != nil {
			errs = append(errs, &ConfigError{Key: "operation-timeout", Value: d.OperationTimeout, Err: err})
		} else {
			errs = append(errs, p.SetOperationTimeout(timeout))
		}
	}
	if d.RefreshInterval != "" {
		interval, err := parseDuration(d.RefreshInterval, time.Second)
		switch {
		case err != nil:
			errs = append(errs, &ConfigError{Key: "refresh-interval", Value: d.RefreshInterval, Err: err})
		case interval <= 0:
			errs = append(errs, ErrInvalidRefreshInterval)
		default:
			p.RefreshInterval = interval
		}
	}
	return errors.Join(errs...)
}

// parseDuration accepts Go duration syntax or a bare integer in unit.
func parseDuration(value string, unit time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative value %d", n)
		}
		return time.Duration(n) * unit, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", d)
	}
	return d, nil
}
