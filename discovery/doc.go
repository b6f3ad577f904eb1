// Package discovery keeps a memcached server list in step with a cluster.
//
// A NodeSource reports the current node addresses; ConfigEndpoint asks an
// ElastiCache configuration endpoint over the memcached text protocol and the
// elasticache subpackage asks the AWS API. A Poller refreshes a
// memcache.ServerList from a source on an interval.
package discovery
