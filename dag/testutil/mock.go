package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/kbukum/mindboggle123/dag"
)

// MockNode is a configurable test node for DAG testing.
// It records calls and returns a preset output or error.
type MockNode struct {
	name   string
	output any
	err    error
	fn     func(ctx context.Context, state *dag.State) (any, error)
	in     []dag.PortSpec
	out    []dag.PortSpec

	mu    sync.Mutex
	calls int
}

var (
	_ dag.Node   = (*MockNode)(nil)
	_ dag.Ported = (*MockNode)(nil)
)

// NewMockNode creates a mock node that returns the given output.
// If err is non-nil, the node will fail with that error.
func NewMockNode(name string, output any, err error) *MockNode {
	return &MockNode{name: name, output: output, err: err}
}

// NewMockNodeFunc creates a mock node backed by a custom function.
func NewMockNodeFunc(name string, fn func(ctx context.Context, state *dag.State) (any, error)) *MockNode {
	return &MockNode{name: name, fn: fn}
}

// Reads declares input ports.
func (n *MockNode) Reads(ports ...dag.PortSpec) *MockNode {
	n.in = append(n.in, ports...)
	return n
}

// Writes declares output ports.
func (n *MockNode) Writes(ports ...dag.PortSpec) *MockNode {
	n.out = append(n.out, ports...)
	return n
}

func (n *MockNode) Name() string             { return n.name }
func (n *MockNode) Inputs() []dag.PortSpec  { return n.in }
func (n *MockNode) Outputs() []dag.PortSpec { return n.out }

func (n *MockNode) Run(ctx context.Context, state *dag.State) (any, error) {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()

	if n.fn != nil {
		return n.fn(ctx, state)
	}
	return n.output, n.err
}

// Calls returns how many times Run was invoked.
func (n *MockNode) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

// Reset clears the call counter.
func (n *MockNode) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = 0
}

// GraphBuilder provides a fluent API for constructing test graphs. Any wiring
// error fails the test immediately.
type GraphBuilder struct {
	t     testing.TB
	graph *dag.Graph
}

// NewGraphBuilder creates a new GraphBuilder.
func NewGraphBuilder(t testing.TB, name string) *GraphBuilder {
	return &GraphBuilder{t: t, graph: dag.NewGraph(name)}
}

// AddNode adds a node to the graph.
func (b *GraphBuilder) AddNode(node dag.Node) *GraphBuilder {
	b.t.Helper()
	if err := b.graph.AddNode(node); err != nil {
		b.t.Fatalf("AddNode(%s): %v", node.Name(), err)
	}
	return b
}

// Connect adds a port edge: to reads port written by from.
func (b *GraphBuilder) Connect(from, to string, port dag.PortSpec) *GraphBuilder {
	b.t.Helper()
	if err := b.graph.Connect(from, to, port); err != nil {
		b.t.Fatalf("Connect(%s -> %s): %v", from, to, err)
	}
	return b
}

// Provide seeds a port value.
func (b *GraphBuilder) Provide(port dag.PortSpec, value any) *GraphBuilder {
	b.t.Helper()
	if err := b.graph.Provide(port, value); err != nil {
		b.t.Fatalf("Provide(%s): %v", port.Key, err)
	}
	return b
}

// Build returns the constructed Graph.
func (b *GraphBuilder) Build() *dag.Graph {
	return b.graph
}
