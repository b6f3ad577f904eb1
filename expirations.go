package memcached

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ExpirationSpec is the parsed form of an expirations property.
type ExpirationSpec struct {
	// Default is set by a bare token; HasDefault reports whether one was present.
	Default    time.Duration
	HasDefault bool

	// PerName maps cache names to their expiration. Never nil on success.
	PerName map[string]time.Duration
}

// ParseExpirations parses a whitespace or comma separated list of tokens.
// A token without a colon sets the default expiration; a token of the form
// name:seconds sets a per-name expiration. The last colon separates the name
// from the seconds, so names may contain colons. Zero seconds means no expiry.
//
//	spec, _ := memcached.ParseExpirations("300, books:60 authors:0")
//	fmt.Println(spec.Default, spec.PerName["books"]) // 5m0s 1m0s
func ParseExpirations(value string) (ExpirationSpec, error) {
	if strings.TrimSpace(value) == "" {
		return ExpirationSpec{}, &ConfigError{Key: "expirations", Value: value, Err: ErrEmptyExpirations}
	}
	tokens := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(tokens) == 0 {
		return ExpirationSpec{}, &ConfigError{Key: "expirations", Value: value, Err: ErrEmptyExpirations}
	}

	spec := ExpirationSpec{PerName: make(map[string]time.Duration)}
	for _, token := range tokens {
		idx := strings.LastIndexByte(token, ':')
		if idx < 1 {
			d, err := parseExpirationSeconds(token)
			if err != nil {
				return ExpirationSpec{}, &ConfigError{Key: "expiration", Value: token, Err: err}
			}
			spec.Default = d
			spec.HasDefault = true
			continue
		}
		name, seconds := token[:idx], token[idx+1:]
		d, err := parseExpirationSeconds(seconds)
		if err != nil {
			return ExpirationSpec{}, &ConfigError{Key: "expirations." + name, Value: seconds, Err: err}
		}
		spec.PerName[name] = d
	}
	return spec, nil
}

func parseExpirationSeconds(value string) (time.Duration, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, ErrInvalidExpiration
	}
	if n == 0 {
		return NoExpiration, nil
	}
	return time.Duration(n) * time.Second, nil
}
