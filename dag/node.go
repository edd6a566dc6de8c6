package dag

import (
	"context"
)

// Node is the execution unit in a DAG.
type Node interface {
	Name() string
	Run(ctx context.Context, state *State) (any, error)
}

// Ported is implemented by nodes that declare the ports they read and write.
// Graph.Connect uses the declarations to reject mismatched edges.
type Ported interface {
	Inputs() []PortSpec
	Outputs() []PortSpec
}

// FuncConfig configures an in-process node.
type FuncConfig struct {
	// Name is the unique node identifier in the graph.
	Name string
	// In and Out declare the ports the function reads and writes.
	In  []PortSpec
	Out []PortSpec
	// Fn does the work.
	Fn func(ctx context.Context, state *State) (any, error)
}

// Func builds a node around a plain function.
func Func(cfg FuncConfig) Node {
	return &funcNode{cfg: cfg}
}

type funcNode struct {
	cfg FuncConfig
}

func (n *funcNode) Name() string         { return n.cfg.Name }
func (n *funcNode) Inputs() []PortSpec  { return n.cfg.In }
func (n *funcNode) Outputs() []PortSpec { return n.cfg.Out }

func (n *funcNode) Run(ctx context.Context, state *State) (any, error) {
	return n.cfg.Fn(ctx, state)
}

// Unwrapper is implemented by node decorators.
type Unwrapper interface {
	Unwrap() Node
}

// Innermost strips every decorator from n.
func Innermost(n Node) Node {
	for {
		u, ok := n.(Unwrapper)
		if !ok {
			return n
		}
		n = u.Unwrap()
	}
}
