package memcached

import "strings"

// Mode selects how the client finds its memcached nodes.
type Mode string

const (
	// ModeStatic uses the configured server list as-is.
	ModeStatic Mode = "static"
	// ModeDynamic treats the first server as a cluster configuration endpoint
	// and keeps the node list current through auto discovery.
	ModeDynamic Mode = "dynamic"
	// ModeMemory runs an in-process client; no network is involved.
	ModeMemory Mode = "memory"
)

// Protocol identifies the memcached wire protocol.
type Protocol string

const (
	ProtocolText   Protocol = "text"
	ProtocolBinary Protocol = "binary"
)

// ParseMode parses a mode name case-insensitively.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeStatic:
		return ModeStatic, nil
	case ModeDynamic:
		return ModeDynamic, nil
	case ModeMemory:
		return ModeMemory, nil
	default:
		return "", &ConfigError{Key: "mode", Value: value, Err: ErrUnknownMode}
	}
}

// ParseProtocol parses a protocol name case-insensitively.
func ParseProtocol(value string) (Protocol, error) {
	switch Protocol(strings.ToLower(strings.TrimSpace(value))) {
	case ProtocolText:
		return ProtocolText, nil
	case ProtocolBinary:
		return ProtocolBinary, nil
	default:
		return "", &ConfigError{Key: "protocol", Value: value, Err: ErrUnknownProtocol}
	}
}

func (m Mode) valid() bool {
	return m == ModeStatic || m == ModeDynamic || m == ModeMemory
}

func (p Protocol) valid() bool {
	return p == ProtocolText || p == ProtocolBinary
}

func (m Mode) String() string { return string(m) }

func (p Protocol) String() string { return string(p) }
