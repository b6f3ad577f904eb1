// Package memcached provides named caches backed by memcached.
//
// A CacheManager hands out one Cache per name. All caches share a single
// Client; each has its own expiration, resolved from a per-name table with a
// global fallback. Keys are written as <prefix>:<name>:<namespace>:<key>,
// where the namespace value is a counter stored in memcached, so clearing one
// cache is a single increment and leaves other caches intact.
//
// Clients are built from Properties, which can be loaded from YAML and the
// environment with LoadProperties:
//
//	props, err := memcached.LoadProperties("application.yaml", os.LookupEnv)
//	if err != nil {
//		log.Fatal(err)
//	}
//	manager, err := memcached.New(ctx, props)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer manager.Close()
//
//	books := manager.Cache("books")
//	_ = books.Put("isbn-1", []byte("Dune"))
//
// Three client modes exist: static (fixed server list), dynamic (ElastiCache
// auto discovery through the first server) and memory (in process).
package memcached
