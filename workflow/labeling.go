package workflow

import (
	"fmt"
	"path/filepath"

	"github.com/kbukum/mindboggle123/ants"
	"github.com/kbukum/mindboggle123/dag"
	"github.com/kbukum/mindboggle123/errors"
	"github.com/kbukum/mindboggle123/process"
	"github.com/kbukum/mindboggle123/validation"
)

// LabelingStrategy is one of QuickLabeling or FusionLabeling. Both wire a
// sub-graph that reads the thickness outputs and writes PortLabels.
type LabelingStrategy interface {
	Mode() SegMode
	Wire(b *Builder) error

	labeling()
}

// QuickLabeling registers the labeled template to the subject once and
// resamples the template labels into subject space.
type QuickLabeling struct {
	Template ants.Template
}

// FusionLabeling registers each atlas to the subject and combines the
// resampled atlas labels with joint label fusion.
type FusionLabeling struct {
	Atlases []ants.Atlas
}

func (QuickLabeling) labeling()  {}
func (FusionLabeling) labeling() {}

func (QuickLabeling) Mode() SegMode  { return SegQuick }
func (FusionLabeling) Mode() SegMode { return SegFusion }

// SelectLabeling returns the strategy for cfg.ANTs.Seg. For fusion, SegN
// atlases are taken in index order from available; SegN 0 takes them all, up
// to ants.MaxAtlases. Fewer than two atlases is a configuration error.
func SelectLabeling(cfg PipelineConfig, available []ants.Atlas) (LabelingStrategy, error) {
	switch cfg.ANTs.Seg {
	case SegQuick:
		return QuickLabeling{Template: ants.Template{Dir: cfg.Template}}, nil
	case SegFusion:
	default:
		return nil, errors.Configuration("ants_seg", fmt.Sprintf("must be one of: quick, fusion (got %q)", cfg.ANTs.Seg))
	}

	limit := min(ants.MaxAtlases, len(available))
	n := cfg.ANTs.SegN
	if n == 0 {
		n = limit
	}
	v := validation.New()
	if limit < 2 {
		v.AddError("ants_segN", fmt.Sprintf("needs at least 2 atlases under %s, found %d", cfg.Template, len(available)))
	} else {
		v.Range("ants_segN", n, 2, limit)
	}
	if err := v.Validate(); err != nil {
		appErr, _ := errors.AsAppError(err)
		return nil, appErr.WithDetail("available", len(available))
	}
	return FusionLabeling{Atlases: append([]ants.Atlas(nil), available[:n]...)}, nil
}

// Wire adds quick-registration and quick-labels.
func (q QuickLabeling) Wire(b *Builder) error {
	cfg := b.Config()
	tmpl := q.Template
	transforms := ants.Transforms{Prefix: filepath.Join(b.NodeDir("quick-registration"), "subject_to_template_")}
	output := filepath.Join(b.NodeDir("quick-labels"), "labels.nii.gz")

	reg := b.newCommandNode("quick-registration",
		specs(PortBrain),
		specs(portQuickTransforms),
		func(r *reader) plan {
			brain := readPort(r, PortBrain)
			cmd := ants.Registration(ants.RegistrationArgs{
				Name:    "quick-registration",
				Fixed:   tmpl.Path(ants.RegistrationTemplate),
				Moving:  brain,
				Prefix:  transforms.Prefix,
				Preset:  ants.PresetQuick,
				Threads: cfg.ANTs.NumThreads,
			})
			return plan{
				commands: []process.Command{cmd},
				inputs:   []string{brain, tmpl.Path(ants.RegistrationTemplate)},
				outputs:  transforms.All(),
				publish:  func(s *dag.State) { dag.Write(s, portQuickTransforms, transforms) },
				result:   commandStrings(cmd),
			}
		})

	apply := b.newCommandNode("quick-labels",
		specs(PortBrain, portQuickTransforms),
		specs(PortLabels),
		func(r *reader) plan {
			brain := readPort(r, PortBrain)
			t := readPort(r, portQuickTransforms)
			cmd := ants.ApplyTransforms(ants.ApplyArgs{
				Name:       "quick-labels",
				Input:      tmpl.Path(ants.TemplateLabels),
				Reference:  brain,
				Output:     output,
				Transforms: t.Inverse(),
				Threads:    cfg.ANTs.NumThreads,
			})
			return plan{
				commands: []process.Command{cmd},
				inputs:   append([]string{brain, tmpl.Path(ants.TemplateLabels)}, t.All()...),
				outputs:  []string{output},
				publish:  func(s *dag.State) { dag.Write(s, PortLabels, output) },
				result:   commandStrings(cmd),
			}
		})

	for _, n := range []dag.Node{reg, apply} {
		if err := b.Add(n); err != nil {
			return err
		}
	}
	return nil
}

// Wire adds one atlas-registration-<i> and atlas-labels-<i> pair per atlas
// and a joint-fusion node combining them.
func (f FusionLabeling) Wire(b *Builder) error {
	if len(f.Atlases) < 2 {
		return errors.Configuration("ants_segN", fmt.Sprintf("joint fusion needs at least 2 atlases (got %d)", len(f.Atlases)))
	}
	for _, atlas := range f.Atlases {
		for _, n := range []dag.Node{f.registrationNode(b, atlas), f.labelsNode(b, atlas)} {
			if err := b.Add(n); err != nil {
				return err
			}
		}
	}
	return b.Add(f.fusionNode(b))
}

func (f FusionLabeling) registrationNode(b *Builder, atlas ants.Atlas) dag.Node {
	cfg := b.Config()
	name := fmt.Sprintf("atlas-registration-%d", atlas.Index)
	transforms := ants.Transforms{Prefix: filepath.Join(b.NodeDir(name), "atlas_to_subject_")}
	warped := transforms.Prefix + "Warped.nii.gz"

	return b.newCommandNode(name,
		specs(PortBrain),
		specs(atlasTransformsPort(atlas.Index), atlasBrainPort(atlas.Index)),
		func(r *reader) plan {
			brain := readPort(r, PortBrain)
			cmd := ants.Registration(ants.RegistrationArgs{
				Name:    name,
				Fixed:   brain,
				Moving:  atlas.Brain,
				Prefix:  transforms.Prefix,
				Preset:  ants.PresetFull,
				Threads: cfg.ANTs.NumThreads,
			})
			return plan{
				commands: []process.Command{cmd},
				inputs:   []string{brain, atlas.Brain},
				outputs:  append(transforms.All(), warped),
				publish: func(s *dag.State) {
					dag.Write(s, atlasTransformsPort(atlas.Index), transforms)
					dag.Write(s, atlasBrainPort(atlas.Index), warped)
				},
				result: commandStrings(cmd),
			}
		})
}

func (f FusionLabeling) labelsNode(b *Builder, atlas ants.Atlas) dag.Node {
	cfg := b.Config()
	name := fmt.Sprintf("atlas-labels-%d", atlas.Index)
	output := filepath.Join(b.NodeDir(name), "labels.nii.gz")

	return b.newCommandNode(name,
		specs(PortBrain, atlasTransformsPort(atlas.Index)),
		specs(atlasLabelsPort(atlas.Index)),
		func(r *reader) plan {
			brain := readPort(r, PortBrain)
			t := readPort(r, atlasTransformsPort(atlas.Index))
			cmd := ants.ApplyTransforms(ants.ApplyArgs{
				Name:       name,
				Input:      atlas.Labels,
				Reference:  brain,
				Output:     output,
				Transforms: t.Forward(),
				Threads:    cfg.ANTs.NumThreads,
			})
			return plan{
				commands: []process.Command{cmd},
				inputs:   append([]string{brain, atlas.Labels}, t.All()...),
				outputs:  []string{output},
				publish:  func(s *dag.State) { dag.Write(s, atlasLabelsPort(atlas.Index), output) },
				result:   commandStrings(cmd),
			}
		})
}

func (f FusionLabeling) fusionNode(b *Builder) dag.Node {
	cfg := b.Config()
	output := filepath.Join(b.NodeDir("joint-fusion"), "labels.nii.gz")

	in := specs(PortBrain, PortBrainMask)
	for _, atlas := range f.Atlases {
		in = append(in, atlasBrainPort(atlas.Index).Spec(), atlasLabelsPort(atlas.Index).Spec())
	}

	return b.newCommandNode("joint-fusion", in, specs(PortLabels),
		func(r *reader) plan {
			args := ants.FusionArgs{
				Target:  readPort(r, PortBrain),
				Mask:    readPort(r, PortBrainMask),
				Output:  output,
				Threads: cfg.ANTs.NumThreads,
			}
			for _, atlas := range f.Atlases {
				args.Atlases = append(args.Atlases, readPort(r, atlasBrainPort(atlas.Index)))
				args.Labels = append(args.Labels, readPort(r, atlasLabelsPort(atlas.Index)))
			}
			cmd := ants.JointFusion(args)
			inputs := append([]string{args.Target, args.Mask}, args.Atlases...)
			return plan{
				commands: []process.Command{cmd},
				inputs:   append(inputs, args.Labels...),
				outputs:  []string{output},
				publish:  func(s *dag.State) { dag.Write(s, PortLabels, output) },
				result:   commandStrings(cmd),
			}
		})
}
