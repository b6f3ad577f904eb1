package elasticache

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	"github.com/aws/aws-sdk-go-v2/service/elasticache/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goforj/memcached/discovery"
)

type fakeAPI struct {
	out   *elasticache.DescribeCacheClustersOutput
	err   error
	input *elasticache.DescribeCacheClustersInput
}

func (f *fakeAPI) DescribeCacheClusters(_ context.Context, in *elasticache.DescribeCacheClustersInput, _ ...func(*elasticache.Options)) (*elasticache.DescribeCacheClustersOutput, error) {
	f.input = in
	return f.out, f.err
}

func node(status, host string, port int32) types.CacheNode {
	return types.CacheNode{
		CacheNodeStatus: aws.String(status),
		Endpoint:        &types.Endpoint{Address: aws.String(host), Port: aws.Int32(port)},
	}
}

func TestSourceNodesReturnsAvailableEndpoints(t *testing.T) {
	api := &fakeAPI{out: &elasticache.DescribeCacheClustersOutput{
		CacheClusters: []types.CacheCluster{{
			CacheNodes: []types.CacheNode{
				node("available", "b.cache.amazonaws.com", 11211),
				node("creating", "c.cache.amazonaws.com", 11211),
				node("available", "a.cache.amazonaws.com", 11212),
				{CacheNodeStatus: aws.String("available")},
			},
		}},
	}}

	nodes, err := New(api, "sessions").Nodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.cache.amazonaws.com:11212", "b.cache.amazonaws.com:11211"}, nodes)

	require.NotNil(t, api.input)
	assert.Equal(t, "sessions", aws.ToString(api.input.CacheClusterId))
	assert.True(t, aws.ToBool(api.input.ShowCacheNodeInfo))
}

func TestSourceNodesEmptyCluster(t *testing.T) {
	api := &fakeAPI{out: &elasticache.DescribeCacheClustersOutput{}}

	_, err := New(api, "sessions").Nodes(context.Background())
	require.ErrorIs(t, err, discovery.ErrNoNodes)
}

func TestSourceNodesPropagatesAPIError(t *testing.T) {
	boom := errors.New("throttled")
	api := &fakeAPI{err: boom}

	_, err := New(api, "sessions").Nodes(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestSourceRequiresClusterID(t *testing.T) {
	_, err := New(&fakeAPI{}, "").Nodes(context.Background())
	require.Error(t, err)
}
