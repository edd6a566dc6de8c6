package dag

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/spf13/afero"
	"go.yaml.in/yaml/v3"
	"gopkg.in/go-playground/colors.v1"

	"github.com/kbukum/mindboggle123/errors"
)

// statusFill is the DOT fill colour per node status. Nodes without a result
// yet are drawn white.
var statusFill = map[Status][3]uint8{
	StatusCompleted: {165, 214, 167},
	StatusCached:    {144, 202, 249},
	StatusFailed:    {239, 154, 154},
	StatusSkipped:   {224, 224, 224},
	"":              {255, 255, 255},
}

// WriteDOT renders g as Graphviz DOT, colouring nodes by their status in
// result. result may be nil before execution.
func WriteDOT(w io.Writer, g *Graph, result *Result) error {
	dg := graph.New(graph.StringHash, graph.Directed())

	for _, name := range g.NodeNames() {
		status := nodeStatus(result, name)
		rgb := statusFill[status]
		fill, err := colors.RGB(rgb[0], rgb[1], rgb[2])
		if err != nil {
			return errors.Internal(fmt.Errorf("dag: colour for %s: %w", status, err))
		}
		label := name
		if status != "" {
			label = fmt.Sprintf("%s\\n[%s]", name, status)
		}
		if err := dg.AddVertex(name,
			graph.VertexAttribute("shape", "box"),
			graph.VertexAttribute("style", "filled"),
			graph.VertexAttribute("fillcolor", fill.ToHEX().String()),
			graph.VertexAttribute("label", label),
		); err != nil {
			return errors.Internal(fmt.Errorf("dag: adding vertex %s: %w", name, err))
		}
	}

	for _, pair := range edgePairs(g) {
		if err := dg.AddEdge(pair.from, pair.to,
			graph.EdgeAttribute("label", strings.Join(pair.ports, ","))); err != nil {
			return errors.Internal(fmt.Errorf("dag: adding edge %s -> %s: %w", pair.from, pair.to, err))
		}
	}

	return draw.DOT(dg, w)
}

// Pipeline is the YAML description of a graph and, after a run, its outcome.
type Pipeline struct {
	// Name is the workflow identifier.
	Name string `yaml:"name"`
	// Seeds lists ports provided directly instead of by a node.
	Seeds map[string]string `yaml:"seeds,omitempty"`
	// Nodes defines the pipeline's nodes in dependency order.
	Nodes []NodeDef `yaml:"nodes"`
}

// NodeDef describes one node within a pipeline.
type NodeDef struct {
	Name      string   `yaml:"name"`
	DependsOn []string `yaml:"depends_on,omitempty"`
	Reads     []string `yaml:"reads,omitempty"`
	Status    Status   `yaml:"status,omitempty"`
	Duration  string   `yaml:"duration,omitempty"`
	Error     string   `yaml:"error,omitempty"`
}

// Describe converts g, and optionally the result of running it, into a
// Pipeline.
func Describe(g *Graph, result *Result) (*Pipeline, error) {
	levels, err := BuildLevels(g)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{Name: g.Name}
	if len(g.Seeds) > 0 {
		p.Seeds = make(map[string]string, len(g.Seeds))
		for k, v := range g.Seeds {
			p.Seeds[k] = fmt.Sprint(v)
		}
	}

	for _, level := range levels {
		for _, name := range level {
			def := NodeDef{Name: name, DependsOn: g.Dependencies(name)}
			for _, e := range g.Edges {
				if e.To == name {
					def.Reads = append(def.Reads, e.Port)
				}
			}
			sort.Strings(def.Reads)
			if result != nil {
				if nr, ok := result.NodeResults[name]; ok {
					def.Status = nr.Status
					if nr.Duration > 0 {
						def.Duration = nr.Duration.String()
					}
					if nr.Error != nil {
						def.Error = nr.Error.Error()
					} else if nr.Reason != "" {
						def.Error = nr.Reason
					}
				}
			}
			p.Nodes = append(p.Nodes, def)
		}
	}
	return p, nil
}

// WritePipeline writes p as YAML to path.
func WritePipeline(fsys afero.Fs, path string, p *Pipeline) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return errors.Internal(fmt.Errorf("dag: encoding pipeline %s: %w", p.Name, err))
	}
	return writeFile(fsys, path, data)
}

// LoadPipeline reads a pipeline YAML file written by WritePipeline.
func LoadPipeline(fsys afero.Fs, path string) (*Pipeline, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, errors.Filesystem("read", path, err)
	}
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.Internal(fmt.Errorf("dag: parsing %s: %w", path, err))
	}
	return &p, nil
}

// Export writes graph.dot and workflow.yaml for g into dir.
func Export(fsys afero.Fs, dir string, g *Graph, result *Result) error {
	var dot strings.Builder
	if err := WriteDOT(&dot, g, result); err != nil {
		return err
	}
	if err := writeFile(fsys, filepath.Join(dir, "graph.dot"), []byte(dot.String())); err != nil {
		return err
	}
	p, err := Describe(g, result)
	if err != nil {
		return err
	}
	return WritePipeline(fsys, filepath.Join(dir, "workflow.yaml"), p)
}

func writeFile(fsys afero.Fs, path string, data []byte) error {
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Filesystem("mkdir", filepath.Dir(path), err)
	}
	if err := afero.WriteFile(fsys, path, data, 0o644); err != nil {
		return errors.Filesystem("write", path, err)
	}
	return nil
}

func nodeStatus(result *Result, name string) Status {
	if result == nil {
		return ""
	}
	return result.NodeResults[name].Status
}

type edgePair struct {
	from, to string
	ports    []string
}

// edgePairs merges per-port edges between the same two nodes.
func edgePairs(g *Graph) []edgePair {
	index := make(map[[2]string]int)
	var pairs []edgePair
	for _, e := range g.Edges {
		k := [2]string{e.From, e.To}
		i, ok := index[k]
		if !ok {
			i = len(pairs)
			index[k] = i
			pairs = append(pairs, edgePair{from: e.From, to: e.To})
		}
		pairs[i].ports = append(pairs[i].ports, e.Port)
	}
	return pairs
}
