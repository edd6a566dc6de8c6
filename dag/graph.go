package dag

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/dominikbraun/graph"

	"github.com/kbukum/mindboggle123/errors"
)

// Graph declares nodes and edges (dependency relationships).
type Graph struct {
	Name  string
	Nodes map[string]Node
	Edges []Edge
	// Seeds are port values written to state before execution.
	Seeds map[string]any

	topology graph.Graph[string, string]
	// producers maps "<consumer>/<port>" to the node feeding it.
	producers map[string]string
}

// Edge represents a dependency: To reads Port, which From writes.
type Edge struct {
	From string
	To   string
	Port string
}

// NewGraph creates an empty graph.
func NewGraph(name string) *Graph {
	return &Graph{
		Name:      name,
		Nodes:     make(map[string]Node),
		Seeds:     make(map[string]any),
		topology:  graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles()),
		producers: make(map[string]string),
	}
}

// AddNode registers a node. Names must be unique.
func (g *Graph) AddNode(n Node) error {
	g.init()
	name := n.Name()
	if _, exists := g.Nodes[name]; exists {
		return errors.GraphWiring(name, name, "duplicate node name")
	}
	if err := g.topology.AddVertex(name); err != nil {
		return errors.GraphWiring(name, name, err.Error())
	}
	g.Nodes[name] = n
	return nil
}

// Connect declares that node to reads port from node from. When either side
// declares its ports, the port must be present there with the same type. A
// node declaring no ports at all is not checked.
func (g *Graph) Connect(from, to string, port PortSpec) error {
	g.init()
	src, ok := g.Nodes[from]
	if !ok {
		return errors.GraphWiring(from, to, fmt.Sprintf("unknown node %q", from))
	}
	dst, ok := g.Nodes[to]
	if !ok {
		return errors.GraphWiring(from, to, fmt.Sprintf("unknown node %q", to))
	}
	if p, ok := declaredPorts(src); ok {
		if err := matchPort(p.Outputs(), port, "output of "+from); err != nil {
			return errors.GraphWiring(from, to, err.Error())
		}
	}
	if p, ok := declaredPorts(dst); ok {
		if err := matchPort(p.Inputs(), port, "input of "+to); err != nil {
			return errors.GraphWiring(from, to, err.Error())
		}
	}

	slot := to + "/" + port.Key
	if prev, taken := g.producers[slot]; taken && prev != from {
		return errors.GraphWiring(from, to, fmt.Sprintf("port %s already fed by %s", port.Key, prev))
	}
	if _, seeded := g.Seeds[port.Key]; seeded {
		return errors.GraphWiring(from, to, fmt.Sprintf("port %s is already provided", port.Key))
	}

	err := g.topology.AddEdge(from, to)
	switch {
	case err == nil, stderrors.Is(err, graph.ErrEdgeAlreadyExists):
	case stderrors.Is(err, graph.ErrEdgeCreatesCycle):
		return errors.GraphWiring(from, to, "edge creates a cycle")
	default:
		return errors.GraphWiring(from, to, err.Error())
	}

	g.producers[slot] = from
	g.Edges = append(g.Edges, Edge{From: from, To: to, Port: port.Key})
	return nil
}

// declaredPorts returns the port declarations of n, or false when n
// declares neither inputs nor outputs.
func declaredPorts(n Node) (Ported, bool) {
	p, ok := n.(Ported)
	if !ok || (len(p.Inputs()) == 0 && len(p.Outputs()) == 0) {
		return nil, false
	}
	return p, true
}

// Provide seeds a port value that no node in the graph produces.
func (g *Graph) Provide(port PortSpec, value any) error {
	g.init()
	if value == nil || !reflect.TypeOf(value).AssignableTo(port.Type) {
		return errors.GraphWiring("seed", port.Key, fmt.Sprintf("value %T does not fit port type %v", value, port.Type))
	}
	for _, e := range g.Edges {
		if e.Port == port.Key {
			return errors.GraphWiring("seed", e.To, fmt.Sprintf("port %s is already fed by %s", port.Key, e.From))
		}
	}
	g.Seeds[port.Key] = value
	return nil
}

// init allows graphs declared as struct literals.
func (g *Graph) init() {
	if g.Nodes == nil {
		g.Nodes = make(map[string]Node)
	}
	if g.Seeds == nil {
		g.Seeds = make(map[string]any)
	}
	if g.producers == nil {
		g.producers = make(map[string]string)
	}
	if g.topology == nil {
		g.topology = graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
		for name := range g.Nodes {
			_ = g.topology.AddVertex(name)
		}
		for _, e := range g.Edges {
			_ = g.topology.AddEdge(e.From, e.To)
			g.producers[e.To+"/"+e.Port] = e.From
		}
	}
}

// Validate checks that every declared input of every node is fed by an edge
// or a seed.
func (g *Graph) Validate() error {
	g.init()
	for _, name := range g.NodeNames() {
		p, ok := g.Nodes[name].(Ported)
		if !ok {
			continue
		}
		for _, in := range p.Inputs() {
			if _, fed := g.producers[name+"/"+in.Key]; fed {
				continue
			}
			if _, seeded := g.Seeds[in.Key]; seeded {
				continue
			}
			return errors.GraphWiring("?", name, fmt.Sprintf("input port %s is not connected", in))
		}
	}
	return nil
}

// Decorate replaces every node with fn(node). Wiring is unaffected.
func (g *Graph) Decorate(fn func(Node) Node) {
	for name, n := range g.Nodes {
		g.Nodes[name] = fn(n)
	}
}

// NodeNames returns node names in sorted order.
func (g *Graph) NodeNames() []string {
	names := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dependencies returns the distinct direct upstream nodes of name, sorted.
func (g *Graph) Dependencies(name string) []string {
	seen := make(map[string]bool)
	var deps []string
	for _, e := range g.Edges {
		if e.To == name && !seen[e.From] {
			seen[e.From] = true
			deps = append(deps, e.From)
		}
	}
	sort.Strings(deps)
	return deps
}

func matchPort(declared []PortSpec, port PortSpec, where string) error {
	for _, d := range declared {
		if d.Key != port.Key {
			continue
		}
		if d.Type != port.Type {
			return fmt.Errorf("port %s is declared as %v on the %s, not %v", port.Key, d.Type, where, port.Type)
		}
		return nil
	}
	return fmt.Errorf("port %s is not an %s", port.Key, where)
}

// BuildLevels uses Kahn's algorithm to group nodes by dependency level.
// Nodes within the same level can execute in parallel. Levels are sorted by
// name so runs are reproducible.
// Returns an error if a cycle is detected.
func BuildLevels(g *Graph) ([][]string, error) {
	inDegree := make(map[string]int)
	dependents := make(map[string][]string) // from -> [to...]

	for name := range g.Nodes {
		inDegree[name] = 0
	}

	for _, e := range g.Edges {
		if _, ok := g.Nodes[e.From]; !ok {
			return nil, errors.GraphWiring(e.From, e.To, fmt.Sprintf("edge references unknown node %q", e.From))
		}
		if _, ok := g.Nodes[e.To]; !ok {
			return nil, errors.GraphWiring(e.From, e.To, fmt.Sprintf("edge references unknown node %q", e.To))
		}
		inDegree[e.To]++
		dependents[e.From] = append(dependents[e.From], e.To)
	}

	var queue []string
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}

	var levels [][]string
	visited := 0

	for len(queue) > 0 {
		sort.Strings(queue)
		levels = append(levels, queue)
		visited += len(queue)

		var next []string
		for _, name := range queue {
			for _, dep := range dependents[name] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		queue = next
	}

	if visited != len(g.Nodes) {
		return nil, errors.GraphWiring("?", "?", fmt.Sprintf("cycle detected, processed %d of %d nodes", visited, len(g.Nodes)))
	}

	return levels, nil
}
