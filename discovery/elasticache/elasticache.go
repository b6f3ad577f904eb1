// Package elasticache discovers memcached nodes through the AWS ElastiCache
// API instead of the cluster configuration endpoint.
package elasticache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"

	"github.com/goforj/memcached/discovery"
)

const statusAvailable = "available"

// API is the subset of the ElastiCache client used by Source.
type API interface {
	DescribeCacheClusters(ctx context.Context, params *elasticache.DescribeCacheClustersInput, optFns ...func(*elasticache.Options)) (*elasticache.DescribeCacheClustersOutput, error)
}

// Source reports the available nodes of one cache cluster.
type Source struct {
	api       API
	clusterID string
}

var _ discovery.NodeSource = (*Source)(nil)

// New builds a Source over an existing API client.
func New(api API, clusterID string) *Source {
	return &Source{api: api, clusterID: clusterID}
}

// NewFromConfig loads the default AWS configuration (environment, shared
// config, instance role) and builds a Source.
//
// Example: explicit region and static credentials
//
//	src, err := elasticache.NewFromConfig(ctx, "sessions",
//		config.WithRegion("eu-west-1"),
//		elasticache.WithStaticCredentials(key, secret, ""),
//	)
func NewFromConfig(ctx context.Context, clusterID string, optFns ...func(*config.LoadOptions) error) (*Source, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("elasticache: load aws config: %w", err)
	}
	return New(elasticache.NewFromConfig(cfg), clusterID), nil
}

// WithStaticCredentials pins the credentials used by NewFromConfig.
func WithStaticCredentials(accessKey, secretKey, sessionToken string) func(*config.LoadOptions) error {
	return config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, sessionToken))
}

// Nodes implements discovery.NodeSource.
func (s *Source) Nodes(ctx context.Context) ([]string, error) {
	if s.clusterID == "" {
		return nil, errors.New("elasticache: cluster id is empty")
	}
	out, err := s.api.DescribeCacheClusters(ctx, &elasticache.DescribeCacheClustersInput{
		CacheClusterId:    aws.String(s.clusterID),
		ShowCacheNodeInfo: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("elasticache: describe %s: %w", s.clusterID, err)
	}

	var nodes []string
	for _, cluster := range out.CacheClusters {
		for _, node := range cluster.CacheNodes {
			if aws.ToString(node.CacheNodeStatus) != statusAvailable || node.Endpoint == nil {
				continue
			}
			host := aws.ToString(node.Endpoint.Address)
			if host == "" {
				continue
			}
			port := strconv.Itoa(int(aws.ToInt32(node.Endpoint.Port)))
			nodes = append(nodes, net.JoinHostPort(host, port))
		}
	}
	if len(nodes) == 0 {
		return nil, discovery.ErrNoNodes
	}
	slices.Sort(nodes)
	return nodes, nil
}
