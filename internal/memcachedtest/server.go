// Package memcachedtest runs an in-process memcached text-protocol server for
// tests. It understands the commands issued by gomemcache and by the cluster
// discovery client; entries never expire.
package memcachedtest

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

type item struct {
	value   []byte
	flags   uint32
	exptime int32
	cas     uint64
}

// Server is a fake memcached node listening on 127.0.0.1.
type Server struct {
	ln net.Listener

	mu       sync.Mutex
	items    map[string]item
	cas      uint64
	cluster  string
	legacy   bool
	commands []string
	conns    map[net.Conn]struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewServer starts a server and stops it when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("memcachedtest: listen: %v", err)
	}
	s := &Server{
		ln:    ln,
		items: make(map[string]item),
		conns: make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Close stops accepting and drops every open connection.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		_ = s.ln.Close()
		s.mu.Lock()
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
}

// SetCluster sets the answer to "config get cluster". Nodes are host:port.
func (s *Server) SetCluster(version int64, nodes ...string) {
	entries := make([]string, 0, len(nodes))
	for _, node := range nodes {
		host, port, _ := net.SplitHostPort(node)
		entries = append(entries, host+"|"+host+"|"+port)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cluster = fmt.Sprintf("%d\n%s\n", version, strings.Join(entries, " "))
}

// SetLegacyDiscovery makes "config get cluster" fail with ERROR so clients
// fall back to "get AmazonElastiCache:cluster".
func (s *Server) SetLegacyDiscovery(legacy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.legacy = legacy
}

// Value returns the stored bytes for key.
func (s *Server) Value(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), it.value...), true
}

// Expiration returns the exptime sent with the last write of key.
func (s *Server) Expiration(key string) (int32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[key]
	return it.exptime, ok
}

// Keys returns every stored key, sorted.
func (s *Server) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Commands returns the command verbs received so far, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		if !s.dispatch(parts, r, w) {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(parts []string, r *bufio.Reader, w *bufio.Writer) bool {
	s.mu.Lock()
	s.commands = append(s.commands, parts[0])
	s.mu.Unlock()

	switch parts[0] {
	case "get", "gets":
		s.get(parts[0] == "gets", parts[1:], w)
	case "set", "add", "replace":
		// <verb> <key> <flags> <exptime> <bytes>
		if len(parts) < 5 {
			w.WriteString("CLIENT_ERROR bad command line format\r\n")
			return true
		}
		n, err := strconv.Atoi(parts[4])
		if err != nil || n < 0 {
			w.WriteString("CLIENT_ERROR bad data chunk\r\n")
			return true
		}
		buf := make([]byte, n+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return false
		}
		flags, _ := strconv.ParseUint(parts[2], 10, 32)
		exptime, _ := strconv.ParseInt(parts[3], 10, 32)
		w.WriteString(s.store(parts[0], parts[1], buf[:n], uint32(flags), int32(exptime)))
	case "delete":
		if len(parts) < 2 {
			w.WriteString("ERROR\r\n")
			return true
		}
		s.mu.Lock()
		_, ok := s.items[parts[1]]
		delete(s.items, parts[1])
		s.mu.Unlock()
		if ok {
			w.WriteString("DELETED\r\n")
		} else {
			w.WriteString("NOT_FOUND\r\n")
		}
	case "incr", "decr":
		if len(parts) < 3 {
			w.WriteString("ERROR\r\n")
			return true
		}
		w.WriteString(s.incr(parts[0] == "incr", parts[1], parts[2]))
	case "touch":
		if len(parts) < 3 {
			w.WriteString("ERROR\r\n")
			return true
		}
		exptime, _ := strconv.ParseInt(parts[2], 10, 32)
		s.mu.Lock()
		it, ok := s.items[parts[1]]
		if ok {
			it.exptime = int32(exptime)
			s.items[parts[1]] = it
		}
		s.mu.Unlock()
		if ok {
			w.WriteString("TOUCHED\r\n")
		} else {
			w.WriteString("NOT_FOUND\r\n")
		}
	case "flush_all":
		s.mu.Lock()
		s.items = make(map[string]item)
		s.mu.Unlock()
		w.WriteString("OK\r\n")
	case "version":
		w.WriteString("VERSION 1.6.21\r\n")
	case "config":
		s.config(parts[1:], w)
	case "quit":
		return false
	default:
		w.WriteString("ERROR\r\n")
	}
	return true
}

func (s *Server) get(withCAS bool, keys []string, w *bufio.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		if key == "AmazonElastiCache:cluster" && s.cluster != "" {
			fmt.Fprintf(w, "VALUE %s 0 %d\r\n%s\r\n", key, len(s.cluster), s.cluster)
			continue
		}
		it, ok := s.items[key]
		if !ok {
			continue
		}
		if withCAS {
			fmt.Fprintf(w, "VALUE %s %d %d %d\r\n", key, it.flags, len(it.value), it.cas)
		} else {
			fmt.Fprintf(w, "VALUE %s %d %d\r\n", key, it.flags, len(it.value))
		}
		w.Write(it.value)
		w.WriteString("\r\n")
	}
	w.WriteString("END\r\n")
}

func (s *Server) store(verb, key string, value []byte, flags uint32, exptime int32) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.items[key]
	switch {
	case verb == "add" && exists:
		return "NOT_STORED\r\n"
	case verb == "replace" && !exists:
		return "NOT_STORED\r\n"
	}
	s.cas++
	s.items[key] = item{value: value, flags: flags, exptime: exptime, cas: s.cas}
	return "STORED\r\n"
}

func (s *Server) incr(up bool, key, delta string) string {
	d, err := strconv.ParseUint(delta, 10, 64)
	if err != nil {
		return "CLIENT_ERROR invalid numeric delta argument\r\n"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[key]
	if !ok {
		return "NOT_FOUND\r\n"
	}
	cur, err := strconv.ParseUint(strings.TrimSpace(string(it.value)), 10, 64)
	if err != nil {
		return "CLIENT_ERROR cannot increment or decrement non-numeric value\r\n"
	}
	switch {
	case up:
		cur += d
	case d > cur:
		cur = 0
	default:
		cur -= d
	}
	s.cas++
	it.value = []byte(strconv.FormatUint(cur, 10))
	it.cas = s.cas
	s.items[key] = it
	return strconv.FormatUint(cur, 10) + "\r\n"
}

func (s *Server) config(args []string, w *bufio.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.legacy || len(args) < 2 || args[0] != "get" || args[1] != "cluster" {
		w.WriteString("ERROR\r\n")
		return
	}
	if s.cluster == "" {
		w.WriteString("END\r\n")
		return
	}
	fmt.Fprintf(w, "CONFIG cluster 0 %d\r\n%s\r\nEND\r\n", len(s.cluster), s.cluster)
}
