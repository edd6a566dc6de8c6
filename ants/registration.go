package ants

import (
	"fmt"

	"github.com/kbukum/mindboggle123/process"
)

// Preset selects a fixed antsRegistration parameter schedule.
type Preset string

const (
	// PresetQuick is the rigid+affine+SyN schedule used for quick labeling.
	PresetQuick Preset = "quick"
	// PresetFull is the slower schedule used to register each fusion atlas.
	PresetFull Preset = "full"
)

type schedule struct {
	linearConvergence string
	synConvergence    string
	synMetric         string
}

var schedules = map[Preset]schedule{
	PresetQuick: {
		linearConvergence: "[1000x500x250x0,1e-6,10]",
		synConvergence:    "[100x70x50x0,1e-6,10]",
		synMetric:         "MI[%s,%s,1,32]",
	},
	PresetFull: {
		linearConvergence: "[1000x500x250x100,1e-6,10]",
		synConvergence:    "[100x70x50x20,1e-6,10]",
		synMetric:         "CC[%s,%s,1,4]",
	},
}

const (
	shrinkFactors   = "8x4x2x1"
	smoothingSigmas = "3x2x1x0vox"
)

// RegistrationArgs configures one antsRegistration run.
type RegistrationArgs struct {
	Name   string
	Fixed  string
	Moving string
	// Prefix is the output transform prefix.
	Prefix  string
	Preset  Preset
	Threads int
}

// Registration builds an antsRegistration command. Unknown presets fall back
// to PresetQuick.
func Registration(a RegistrationArgs) process.Command {
	s, ok := schedules[a.Preset]
	if !ok {
		s = schedules[PresetQuick]
	}
	linearMetric := fmt.Sprintf("MI[%s,%s,1,32,Regular,0.25]", a.Fixed, a.Moving)

	args := []string{
		"--dimensionality", "3",
		"--float", "0",
		"--output", fmt.Sprintf("[%s,%sWarped.nii.gz]", a.Prefix, a.Prefix),
		"--interpolation", "Linear",
		"--winsorize-image-intensities", "[0.005,0.995]",
		"--use-histogram-matching", "0",
		"--initial-moving-transform", fmt.Sprintf("[%s,%s,1]", a.Fixed, a.Moving),
	}
	for _, transform := range []string{"Rigid[0.1]", "Affine[0.1]"} {
		args = append(args,
			"--transform", transform,
			"--metric", linearMetric,
			"--convergence", s.linearConvergence,
			"--shrink-factors", shrinkFactors,
			"--smoothing-sigmas", smoothingSigmas,
		)
	}
	args = append(args,
		"--transform", "SyN[0.1,3,0]",
		"--metric", fmt.Sprintf(s.synMetric, a.Fixed, a.Moving),
		"--convergence", s.synConvergence,
		"--shrink-factors", shrinkFactors,
		"--smoothing-sigmas", smoothingSigmas,
	)

	name := a.Name
	if name == "" {
		name = "antsRegistration"
	}
	return process.Command{
		Name:   name,
		Binary: "antsRegistration",
		Args:   args,
		Env:    threadsEnv(a.Threads),
	}
}

// Transforms names the files antsRegistration writes for a prefix.
type Transforms struct {
	Prefix string
}

func (t Transforms) Affine() string      { return t.Prefix + "0GenericAffine.mat" }
func (t Transforms) Warp() string        { return t.Prefix + "1Warp.nii.gz" }
func (t Transforms) InverseWarp() string { return t.Prefix + "1InverseWarp.nii.gz" }

// All lists every transform file.
func (t Transforms) All() []string {
	return []string{t.Affine(), t.Warp(), t.InverseWarp()}
}

// Forward maps moving space onto fixed space, in antsApplyTransforms order.
func (t Transforms) Forward() []string {
	return []string{t.Warp(), t.Affine()}
}

// Inverse maps fixed space onto moving space, in antsApplyTransforms order.
func (t Transforms) Inverse() []string {
	return []string{fmt.Sprintf("[%s,1]", t.Affine()), t.InverseWarp()}
}
