package discovery

import "context"

// NodeSource reports the host:port addresses of the nodes in a cluster.
type NodeSource interface {
	Nodes(ctx context.Context) ([]string, error)
}

// NodeSourceFunc adapts a function to NodeSource.
type NodeSourceFunc func(ctx context.Context) ([]string, error)

// Nodes implements NodeSource.
func (f NodeSourceFunc) Nodes(ctx context.Context) ([]string, error) {
	return f(ctx)
}

// Static always reports the same nodes.
func Static(nodes ...string) NodeSource {
	out := append([]string(nil), nodes...)
	return NodeSourceFunc(func(context.Context) ([]string, error) {
		return append([]string(nil), out...), nil
	})
}
