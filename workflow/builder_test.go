package workflow

import (
	"context"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"

	"github.com/kbukum/mindboggle123/ants"
	"github.com/kbukum/mindboggle123/dag"
	"github.com/kbukum/mindboggle123/errors"
	"github.com/kbukum/mindboggle123/process"
)

// recorder is a Runner that records commands instead of executing them.
type recorder struct {
	mu   sync.Mutex
	cmds []process.Command
	fail map[string]error
}

func (r *recorder) run(_ context.Context, cmd process.Command) (*process.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
	if err := r.fail[cmd.Name]; err != nil {
		return &process.Result{ExitCode: 1}, err
	}
	return &process.Result{}, nil
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.cmds))
	for i, c := range r.cmds {
		out[i] = c.Name
	}
	return out
}

func (r *recorder) byName(name string) []process.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []process.Command
	for _, c := range r.cmds {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func testConfig(t *testing.T, mutate func(*Options)) PipelineConfig {
	t.Helper()
	root := t.TempDir()
	o := Options{
		Image:    filepath.Join(root, "arno.nii.gz"),
		ID:       "arno",
		Out:      filepath.Join(root, "out"),
		Working:  filepath.Join(root, "working"),
		Template: filepath.Join(root, "template"),
	}
	if mutate != nil {
		mutate(&o)
	}
	cfg, err := Resolve(o)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return cfg
}

func fakeAtlases(dir string, n int) []ants.Atlas {
	tmpl := ants.Template{Dir: dir}
	atlases := make([]ants.Atlas, n)
	for i := range atlases {
		atlases[i] = tmpl.AtlasPaths(i + 1)
	}
	return atlases
}

func buildGraph(t *testing.T, cfg PipelineConfig, opts ...BuilderOption) *dag.Graph {
	t.Helper()
	labeling, err := SelectLabeling(cfg, fakeAtlases(cfg.Template, ants.MaxAtlases))
	if err != nil {
		t.Fatalf("SelectLabeling: %v", err)
	}
	opts = append([]BuilderOption{WithFs(afero.NewMemMapFs())}, opts...)
	g, err := Build(cfg, labeling, opts...)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func TestBuildQuickGraph(t *testing.T) {
	g := buildGraph(t, testConfig(t, nil))

	want := []string{
		"antsCorticalThickness", "label-masker", "label-measures", "mindboggle",
		"quick-labels", "quick-registration", "recon-all",
	}
	if got := g.NodeNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("NodeNames() = %v, want %v", got, want)
	}

	levels, err := dag.BuildLevels(g)
	if err != nil {
		t.Fatal(err)
	}
	wantLevels := [][]string{
		{"antsCorticalThickness", "recon-all"},
		{"quick-registration"},
		{"quick-labels"},
		{"label-masker"},
		{"label-measures"},
		{"mindboggle"},
	}
	if !reflect.DeepEqual(levels, wantLevels) {
		t.Errorf("levels = %v, want %v", levels, wantLevels)
	}

	deps := g.Dependencies("mindboggle")
	if strings.Join(deps, ",") != "antsCorticalThickness,label-measures,recon-all" {
		t.Errorf("mindboggle depends on %v", deps)
	}
}

func TestBuildEdgesArePerPort(t *testing.T) {
	g := buildGraph(t, testConfig(t, nil))
	var ports []string
	for _, e := range g.Edges {
		if e.To == "label-masker" {
			ports = append(ports, e.From+":"+e.Port)
		}
	}
	sort.Strings(ports)
	want := []string{"antsCorticalThickness:ants.thickness", "quick-labels:labels.subject"}
	if !reflect.DeepEqual(ports, want) {
		t.Errorf("label-masker edges = %v, want %v", ports, want)
	}
}

func TestBuildSkipSubstitution(t *testing.T) {
	t.Run("freesurfer", func(t *testing.T) {
		cfg := testConfig(t, func(o *Options) { o.SkipFreeSurfer = true })
		g := buildGraph(t, cfg)
		if _, ok := g.Nodes["recon-all"]; ok {
			t.Fatal("recon-all must not be in the graph")
		}
		if got := g.Seeds[PortFSSubjectDir.Key]; got != filepath.Join(cfg.FreeSurferDir(), "arno") {
			t.Errorf("fs.subject_dir seed = %v", got)
		}
		if deps := g.Dependencies("mindboggle"); strings.Join(deps, ",") != "antsCorticalThickness,label-measures" {
			t.Errorf("mindboggle depends on %v", deps)
		}
	})

	t.Run("ants", func(t *testing.T) {
		cfg := testConfig(t, func(o *Options) { o.SkipANTs = true })
		g := buildGraph(t, cfg)
		if _, ok := g.Nodes["antsCorticalThickness"]; ok {
			t.Fatal("antsCorticalThickness must not be in the graph")
		}
		if got := g.Seeds[PortSegmentation.Key]; got != cfg.ANTsPrefix()+"BrainSegmentation.nii.gz" {
			t.Errorf("segmentation seed = %v", got)
		}
		if got, ok := g.Seeds[PortTransforms.Key].([]string); !ok || len(got) != 3 {
			t.Errorf("transforms seed = %v", g.Seeds[PortTransforms.Key])
		}
		if deps := g.Dependencies("quick-registration"); len(deps) != 0 {
			t.Errorf("quick-registration depends on %v", deps)
		}
	})

	t.Run("both", func(t *testing.T) {
		cfg := testConfig(t, func(o *Options) { o.SkipFreeSurfer, o.SkipANTs = true, true })
		g := buildGraph(t, cfg)
		want := []string{"label-masker", "label-measures", "mindboggle", "quick-labels", "quick-registration"}
		if got := g.NodeNames(); !reflect.DeepEqual(got, want) {
			t.Errorf("NodeNames() = %v, want %v", got, want)
		}
	})
}

func TestBuilderWiringErrors(t *testing.T) {
	noop := func(context.Context, *dag.State) (any, error) { return nil, nil }
	node := func(name string, in, out []dag.PortSpec) dag.Node {
		return dag.Func(dag.FuncConfig{Name: name, In: in, Out: out, Fn: noop})
	}

	t.Run("unproduced input", func(t *testing.T) {
		b := NewBuilder(PipelineConfig{})
		err := b.Add(node("quick-labels", specs(PortBrain), nil))
		if !errors.HasCode(err, errors.ErrCodeGraphWiring) {
			t.Fatalf("Add() error = %v", err)
		}
	})

	t.Run("second producer", func(t *testing.T) {
		b := NewBuilder(PipelineConfig{})
		if err := b.Add(node("a", nil, specs(PortLabels))); err != nil {
			t.Fatal(err)
		}
		err := b.Add(node("b", nil, specs(PortLabels)))
		if !errors.HasCode(err, errors.ErrCodeGraphWiring) || !strings.Contains(err.Error(), "already produced by a") {
			t.Fatalf("Add() error = %v", err)
		}
	})

	t.Run("produce seeded port", func(t *testing.T) {
		b := NewBuilder(PipelineConfig{})
		if err := b.Provide(PortImage.Spec(), "/data/t1.nii.gz"); err != nil {
			t.Fatal(err)
		}
		if err := b.Add(node("a", nil, specs(PortImage))); !errors.HasCode(err, errors.ErrCodeGraphWiring) {
			t.Fatalf("Add() error = %v", err)
		}
	})

	t.Run("seed produced port", func(t *testing.T) {
		b := NewBuilder(PipelineConfig{})
		if err := b.Add(node("a", nil, specs(PortLabels))); err != nil {
			t.Fatal(err)
		}
		if err := b.Provide(PortLabels.Spec(), "/x"); !errors.HasCode(err, errors.ErrCodeGraphWiring) {
			t.Fatalf("Provide() error = %v", err)
		}
	})

	t.Run("seed of wrong type", func(t *testing.T) {
		b := NewBuilder(PipelineConfig{})
		if err := b.Provide(PortTransforms.Spec(), "/x"); !errors.HasCode(err, errors.ErrCodeGraphWiring) {
			t.Fatalf("Provide() error = %v", err)
		}
	})
}

type silentLabeling struct{}

func (silentLabeling) Mode() SegMode         { return "silent" }
func (silentLabeling) Wire(b *Builder) error { return nil }
func (silentLabeling) labeling()             {}

func TestBuildRequiresLabels(t *testing.T) {
	_, err := Build(testConfig(t, nil), silentLabeling{}, WithFs(afero.NewMemMapFs()))
	if !errors.HasCode(err, errors.ErrCodeGraphWiring) {
		t.Fatalf("Build() error = %v, want graph wiring error", err)
	}
	if _, err := Build(testConfig(t, nil), nil); !errors.HasCode(err, errors.ErrCodeConfiguration) {
		t.Fatalf("Build(nil) error = %v", err)
	}
}

// seedOutputs creates the files the mindboggle node checks before running.
func seedOutputs(t *testing.T, fs afero.Fs, cfg PipelineConfig) {
	t.Helper()
	files := []string{
		cfg.Image,
		filepath.Join(cfg.FreeSurferDir(), cfg.ID, "mri", "orig.mgz"),
		cfg.ANTsPrefix() + ants.SegmentationName,
	}
	for _, f := range files {
		if err := fs.MkdirAll(filepath.Dir(f), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := afero.WriteFile(fs, f, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestGraphRunsCommandsInOrder(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := testConfig(t, func(o *Options) { o.MBNumThreads = 4 })
	seedOutputs(t, fs, cfg)

	rec := &recorder{}
	g := buildGraph(t, cfg, WithFs(fs), WithRunner(rec.run))
	state := dag.NewState()
	result, err := (&dag.Engine{MaxParallel: 1}).ExecuteBatch(context.Background(), g, state)
	if err != nil {
		t.Fatal(err)
	}
	if err := result.Err(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	want := []string{
		"antsCorticalThickness", "recon-all",
		"quick-registration", "quick-labels",
		"threshold-thickness", "threshold-cortex", "keep-mask", "mask-labels",
		"label-measures", "mindboggle",
	}
	if got := rec.names(); !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}

	line, err := dag.Read(state, PortCommand)
	if err != nil {
		t.Fatal(err)
	}
	if result.NodeResults["mindboggle"].Output != line {
		t.Errorf("mindboggle output = %v, want %q", result.NodeResults["mindboggle"].Output, line)
	}
	mb := rec.byName("mindboggle")[0]
	if mb.Binary != "sh" || mb.Args[1] != line {
		t.Errorf("mindboggle ran %v", mb.Argv())
	}
	if !strings.Contains(line, `--plugin MultiProc --plugin_args "dict(n_procs=4)"`) {
		t.Errorf("command = %s", line)
	}

	if measures, _ := dag.Read(state, PortMeasures); measures != cfg.LabelsCSV() {
		t.Errorf("labels.measures = %s", measures)
	}
	logPath := filepath.Join(cfg.WorkflowDir(), "recon-all", "recon-all.log")
	if ok, _ := afero.Exists(fs, logPath); !ok {
		t.Errorf("missing node log %s", logPath)
	}
}

func TestGraphStopsAtFailedTool(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := testConfig(t, nil)
	seedOutputs(t, fs, cfg)

	rec := &recorder{fail: map[string]error{
		"quick-registration": errors.ExternalProcess("quick-registration", 1, nil),
	}}
	g := buildGraph(t, cfg, WithFs(fs), WithRunner(rec.run))
	result, err := (&dag.Engine{}).ExecuteBatch(context.Background(), g, dag.NewState())
	if err != nil {
		t.Fatal(err)
	}
	if !errors.HasCode(result.Err(), errors.ErrCodeExternalProcess) {
		t.Fatalf("result error = %v", result.Err())
	}
	for _, name := range []string{"quick-labels", "label-masker", "label-measures", "mindboggle"} {
		if st := result.NodeResults[name].Status; st != dag.StatusSkipped {
			t.Errorf("%s status = %s, want skipped", name, st)
		}
	}
	if len(rec.byName("mindboggle")) != 0 {
		t.Error("mindboggle ran after an upstream failure")
	}
}

func TestCommandNodeCacheKey(t *testing.T) {
	cfg := testConfig(t, nil)
	g := buildGraph(t, cfg)
	state := dag.NewState()
	for k, v := range g.Seeds {
		state.Set(k, v)
	}

	node := g.Nodes["recon-all"].(dag.Cacheable)
	key, err := node.CacheKey(state)
	if err != nil {
		t.Fatal(err)
	}
	if len(key.Commands) != 1 || key.Commands[0][0] != "recon-all" {
		t.Errorf("commands = %v", key.Commands)
	}
	if !reflect.DeepEqual(key.Inputs, []string{cfg.Image}) {
		t.Errorf("inputs = %v", key.Inputs)
	}
	if !reflect.DeepEqual(key.Env, []string{"SUBJECTS_DIR=" + cfg.FreeSurferDir()}) {
		t.Errorf("env = %v", key.Env)
	}

	out, err := node.Publish(state)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := dag.Read(state, PortFSSubjectDir); got != filepath.Join(cfg.FreeSurferDir(), "arno") {
		t.Errorf("published fs.subject_dir = %s", got)
	}
	if cmds, ok := out.([]string); !ok || !strings.HasPrefix(cmds[0], "recon-all -all -s arno") {
		t.Errorf("Publish() = %v", out)
	}

	if _, err := g.Nodes["mindboggle"].(dag.Cacheable).CacheKey(dag.NewState()); !errors.HasCode(err, errors.ErrCodeInternal) {
		t.Errorf("CacheKey without inputs error = %v", err)
	}
}
