package workflow

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/kbukum/mindboggle123/ants"
	"github.com/kbukum/mindboggle123/dag"
	"github.com/kbukum/mindboggle123/errors"
	"github.com/kbukum/mindboggle123/freesurfer"
	"github.com/kbukum/mindboggle123/logger"
	"github.com/kbukum/mindboggle123/process"
)

// Builder assembles the pipeline graph. Every added node is connected to the
// producers of the ports it reads; a port nobody produces must be seeded
// with Provide first.
type Builder struct {
	cfg   PipelineConfig
	graph *dag.Graph
	// producers maps a port key to the node writing it.
	producers map[string]string

	run Runner
	fs  afero.Fs
	log *logger.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithRunner replaces process.Run for every command node.
func WithRunner(r Runner) BuilderOption {
	return func(b *Builder) { b.run = r }
}

// WithFs sets the filesystem used for input checks and node logs.
func WithFs(fs afero.Fs) BuilderOption {
	return func(b *Builder) { b.fs = fs }
}

// WithLogger sets the logger command nodes report to.
func WithLogger(l *logger.Logger) BuilderOption {
	return func(b *Builder) { b.log = l }
}

// NewBuilder returns a builder for an empty graph named after the workflow.
func NewBuilder(cfg PipelineConfig, opts ...BuilderOption) *Builder {
	b := &Builder{
		cfg:       cfg,
		graph:     dag.NewGraph(WorkflowName),
		producers: make(map[string]string),
		run:       process.Run,
		fs:        afero.NewOsFs(),
		log:       logger.Get("workflow"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Config returns the configuration the graph is built for.
func (b *Builder) Config() PipelineConfig { return b.cfg }

// Graph returns the graph built so far.
func (b *Builder) Graph() *dag.Graph { return b.graph }

// Provide seeds a port with a value in place of a producing node.
func (b *Builder) Provide(port dag.PortSpec, value any) error {
	if node, ok := b.producers[port.Key]; ok {
		return errors.GraphWiring("seed", node, fmt.Sprintf("port %s is produced by %s", port.Key, node))
	}
	return b.graph.Provide(port, value)
}

// Add registers n and connects each of its inputs to the node producing it.
func (b *Builder) Add(n dag.Node) error {
	if err := b.graph.AddNode(n); err != nil {
		return err
	}
	p, ok := n.(dag.Ported)
	if !ok {
		return nil
	}

	for _, in := range p.Inputs() {
		if from, ok := b.producers[in.Key]; ok {
			if err := b.graph.Connect(from, n.Name(), in); err != nil {
				return err
			}
			continue
		}
		if _, seeded := b.graph.Seeds[in.Key]; !seeded {
			return errors.GraphWiring("?", n.Name(), fmt.Sprintf("no producer for port %s", in.Key))
		}
	}
	for _, out := range p.Outputs() {
		if prev, ok := b.producers[out.Key]; ok {
			return errors.GraphWiring(n.Name(), "?", fmt.Sprintf("port %s is already produced by %s", out.Key, prev))
		}
		if _, seeded := b.graph.Seeds[out.Key]; seeded {
			return errors.GraphWiring(n.Name(), "?", fmt.Sprintf("port %s is already provided", out.Key))
		}
		b.producers[out.Key] = n.Name()
	}
	return nil
}

// Produces reports whether a node or seed supplies port.
func (b *Builder) Produces(port dag.PortSpec) bool {
	if _, ok := b.producers[port.Key]; ok {
		return true
	}
	_, ok := b.graph.Seeds[port.Key]
	return ok
}

// NodeDir is the working directory of a node.
func (b *Builder) NodeDir(name string) string {
	return filepath.Join(b.cfg.WorkflowDir(), name)
}

func (b *Builder) newCommandNode(name string, in, out []dag.PortSpec, fn func(r *reader) plan) *commandNode {
	return &commandNode{
		name: name,
		in:   in,
		out:  out,
		dir:  b.NodeDir(name),
		plan: fn,
		run:  b.run,
		fs:   b.fs,
		log:  b.log,
	}
}

// Build wires the complete pipeline: reconstruction, thickness estimation,
// the labeling sub-graph, label masking and measurement, then mindboggle.
// Skipped stages are replaced by their expected output paths.
func Build(cfg PipelineConfig, labeling LabelingStrategy, opts ...BuilderOption) (*dag.Graph, error) {
	if labeling == nil {
		return nil, errors.Configuration("ants_seg", "no labeling strategy selected")
	}
	b := NewBuilder(cfg, opts...)

	steps := []func() error{
		b.seedInputs,
		b.addReconstruction,
		b.addThickness,
		func() error { return labeling.Wire(b) },
		func() error {
			if !b.Produces(PortLabels.Spec()) {
				return errors.GraphWiring(string(labeling.Mode()), "label-masker", "labeling produced no "+PortLabels.Key)
			}
			return nil
		},
		func() error { return b.Add(b.labelMaskerNode()) },
		func() error { return b.Add(b.labelMeasuresNode()) },
		func() error { return b.Add(b.mindboggleNode()) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	if err := b.graph.Validate(); err != nil {
		return nil, err
	}
	return b.graph, nil
}

func (b *Builder) seedInputs() error {
	seeds := []struct {
		port  dag.PortSpec
		value string
	}{
		{PortImage.Spec(), b.cfg.Image},
		{PortSubject.Spec(), b.cfg.ID},
		{PortSubjectsDir.Spec(), b.cfg.FreeSurferDir()},
	}
	for _, s := range seeds {
		if err := b.Provide(s.port, s.value); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) addReconstruction() error {
	if b.cfg.SkipFreeSurfer {
		return b.Provide(PortFSSubjectDir.Spec(), freesurfer.SubjectDir(b.cfg.FreeSurferDir(), b.cfg.ID))
	}
	return b.Add(b.reconNode())
}

func (b *Builder) addThickness() error {
	if !b.cfg.SkipANTs {
		return b.Add(b.thicknessNode())
	}
	outs := ants.ThicknessOutputs{Prefix: b.cfg.ANTsPrefix()}
	seeds := []struct {
		port  dag.PortSpec
		value any
	}{
		{PortSegmentation.Spec(), outs.Segmentation()},
		{PortThickness.Spec(), outs.Thickness()},
		{PortBrain.Spec(), outs.Brain()},
		{PortBrainMask.Spec(), outs.BrainMask()},
		{PortTransforms.Spec(), thicknessTransforms(outs)},
	}
	for _, s := range seeds {
		if err := b.Provide(s.port, s.value); err != nil {
			return err
		}
	}
	return nil
}

func thicknessTransforms(o ants.ThicknessOutputs) []string {
	return []string{o.SubjectToTemplateAffine(), o.SubjectToTemplateWarp(), o.TemplateToSubjectWarp()}
}

func (b *Builder) reconNode() *commandNode {
	cfg := b.cfg
	return b.newCommandNode("recon-all",
		specs(PortImage, PortSubject, PortSubjectsDir),
		specs(PortFSSubjectDir),
		func(r *reader) plan {
			image := readPort(r, PortImage)
			subject := readPort(r, PortSubject)
			subjectsDir := readPort(r, PortSubjectsDir)

			cmd := freesurfer.ReconAll(freesurfer.ReconArgs{
				Subject:     subject,
				SubjectsDir: subjectsDir,
				Image:       image,
				T2:          cfg.FS.T2Image,
				OpenMP:      cfg.FS.OpenMP,
				Flags:       cfg.FS.Flags,
			})
			subjectDir := freesurfer.SubjectDir(subjectsDir, subject)
			inputs := []string{image}
			if cfg.FS.T2Image != "" {
				inputs = append(inputs, cfg.FS.T2Image)
			}
			return plan{
				commands: []process.Command{cmd},
				requires: inputs,
				inputs:   inputs,
				outputs:  []string{freesurfer.Done(subjectDir)},
				publish:  func(s *dag.State) { dag.Write(s, PortFSSubjectDir, subjectDir) },
				result:   commandStrings(cmd),
			}
		})
}

func (b *Builder) thicknessNode() *commandNode {
	cfg := b.cfg
	tmpl := ants.Template{Dir: cfg.Template}
	outs := ants.ThicknessOutputs{Prefix: cfg.ANTsPrefix()}
	return b.newCommandNode("antsCorticalThickness",
		specs(PortImage),
		specs(PortSegmentation, PortThickness, PortBrain, PortBrainMask, PortTransforms),
		func(r *reader) plan {
			image := readPort(r, PortImage)
			cmd := ants.CorticalThickness(ants.ThicknessArgs{
				Image:    image,
				Template: tmpl,
				Prefix:   outs.Prefix,
				Threads:  cfg.ANTs.NumThreads,
			})
			return plan{
				commands: []process.Command{cmd},
				requires: []string{image},
				inputs:   append([]string{image}, tmpl.ThicknessAssets()...),
				outputs:  outs.All(),
				publish: func(s *dag.State) {
					dag.Write(s, PortSegmentation, outs.Segmentation())
					dag.Write(s, PortThickness, outs.Thickness())
					dag.Write(s, PortBrain, outs.Brain())
					dag.Write(s, PortBrainMask, outs.BrainMask())
					dag.Write(s, PortTransforms, thicknessTransforms(outs))
				},
				result: commandStrings(cmd),
			}
		})
}

func (b *Builder) labelMaskerNode() *commandNode {
	cfg := b.cfg
	dir := b.NodeDir("label-masker")
	files := ants.MaskFiles{
		ThicknessMask: filepath.Join(dir, "thickness_mask.nii.gz"),
		CortexMask:    filepath.Join(dir, "cortex_mask.nii.gz"),
		KeepMask:      filepath.Join(dir, "keep_mask.nii.gz"),
		Masked:        filepath.Join(cfg.ANTsDir(), cfg.ID, "antslabels.nii.gz"),
	}
	return b.newCommandNode("label-masker",
		specs(PortLabels, PortThickness),
		specs(PortMaskedLabels),
		func(r *reader) plan {
			labels := readPort(r, PortLabels)
			thickness := readPort(r, PortThickness)
			cmds := ants.MaskLabels(labels, thickness, files)
			return plan{
				commands: cmds,
				mkdirs:   []string{filepath.Dir(files.Masked)},
				inputs:   []string{labels, thickness},
				outputs:  []string{files.Masked},
				publish:  func(s *dag.State) { dag.Write(s, PortMaskedLabels, files.Masked) },
				result:   commandStrings(cmds...),
			}
		})
}

func (b *Builder) labelMeasuresNode() *commandNode {
	csv := b.cfg.LabelsCSV()
	return b.newCommandNode("label-measures",
		specs(PortMaskedLabels),
		specs(PortMeasures),
		func(r *reader) plan {
			masked := readPort(r, PortMaskedLabels)
			cmd := ants.LabelGeometry(masked, csv)
			return plan{
				commands: []process.Command{cmd},
				mkdirs:   []string{filepath.Dir(csv)},
				inputs:   []string{masked},
				outputs:  []string{csv},
				publish:  func(s *dag.State) { dag.Write(s, PortMeasures, csv) },
				result:   commandStrings(cmd),
			}
		})
}
