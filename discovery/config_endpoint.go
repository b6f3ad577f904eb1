package discovery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNoNodes is returned when a cluster reports an empty node list.
	ErrNoNodes = errors.New("discovery: cluster reported no nodes")

	errUnknownCommand = errors.New("discovery: unknown command")
)

var dialEndpoint = func(ctx context.Context, network, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: 3 * time.Second}
	return d.DialContext(ctx, network, addr)
}

// Cluster is one answer from a configuration endpoint.
type Cluster struct {
	// Version increases every time the node set changes.
	Version int64
	Nodes   []string
}

// ConfigEndpoint discovers nodes through an ElastiCache configuration
// endpoint. It issues "config get cluster" and falls back to
// "get AmazonElastiCache:cluster" for engines older than 1.4.14.
type ConfigEndpoint struct {
	Addr    string
	Timeout time.Duration
}

// Nodes implements NodeSource.
func (e *ConfigEndpoint) Nodes(ctx context.Context) ([]string, error) {
	cluster, err := e.Cluster(ctx)
	if err != nil {
		return nil, err
	}
	return cluster.Nodes, nil
}

// Cluster queries the endpoint once.
func (e *ConfigEndpoint) Cluster(ctx context.Context) (Cluster, error) {
	if e.Addr == "" {
		return Cluster{}, errors.New("discovery: configuration endpoint address is empty")
	}
	conn, err := dialEndpoint(ctx, "tcp", e.Addr)
	if err != nil {
		return Cluster{}, fmt.Errorf("discovery: dial %s: %w", e.Addr, err)
	}
	defer conn.Close()

	if deadline, ok := e.deadline(ctx); ok {
		_ = conn.SetDeadline(deadline)
	}

	r := bufio.NewReader(conn)
	body, err := query(conn, r, "config get cluster")
	if errors.Is(err, errUnknownCommand) {
		body, err = query(conn, r, "get AmazonElastiCache:cluster")
	}
	if err != nil {
		return Cluster{}, fmt.Errorf("discovery: %s: %w", e.Addr, err)
	}
	return parseCluster(body)
}

func (e *ConfigEndpoint) deadline(ctx context.Context) (time.Time, bool) {
	deadline, ok := ctx.Deadline()
	if e.Timeout > 0 {
		byTimeout := time.Now().Add(e.Timeout)
		if !ok || byTimeout.Before(deadline) {
			return byTimeout, true
		}
	}
	return deadline, ok
}

func query(w io.Writer, r *bufio.Reader, command string) ([]byte, error) {
	if _, err := fmt.Fprintf(w, "%s\r\n", command); err != nil {
		return nil, err
	}
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")
	switch {
	case line == "ERROR":
		return nil, errUnknownCommand
	case line == "END":
		return nil, ErrNoNodes
	case strings.HasPrefix(line, "CLIENT_ERROR"), strings.HasPrefix(line, "SERVER_ERROR"):
		return nil, errors.New(line)
	}

	// CONFIG cluster <flags> <bytes> | VALUE AmazonElastiCache:cluster <flags> <bytes>
	fields := strings.Fields(line)
	if len(fields) != 4 || (fields[0] != "CONFIG" && fields[0] != "VALUE") {
		return nil, fmt.Errorf("unexpected response: %s", line)
	}
	n, err := strconv.Atoi(fields[3])
	if err != nil || n < 0 {
		return nil, fmt.Errorf("parse length %q", fields[3])
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	for {
		tail, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(tail) == "END" {
			return body, nil
		}
	}
}

// parseCluster decodes "<version>\n<host>|<ip>|<port> ...\n".
func parseCluster(body []byte) (Cluster, error) {
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) < 2 {
		return Cluster{}, fmt.Errorf("discovery: malformed cluster config %q", string(body))
	}
	version, err := strconv.ParseInt(strings.TrimSpace(lines[0]), 10, 64)
	if err != nil {
		return Cluster{}, fmt.Errorf("discovery: parse config version: %w", err)
	}
	var nodes []string
	for _, entry := range strings.Fields(lines[1]) {
		parts := strings.Split(entry, "|")
		if len(parts) != 3 {
			return Cluster{}, fmt.Errorf("discovery: malformed node entry %q", entry)
		}
		host := parts[1]
		if host == "" {
			host = parts[0]
		}
		if _, err := strconv.Atoi(parts[2]); err != nil || host == "" {
			return Cluster{}, fmt.Errorf("discovery: malformed node entry %q", entry)
		}
		nodes = append(nodes, net.JoinHostPort(host, parts[2]))
	}
	if len(nodes) == 0 {
		return Cluster{}, ErrNoNodes
	}
	return Cluster{Version: version, Nodes: nodes}, nil
}
