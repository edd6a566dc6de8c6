package ants

import (
	"github.com/kbukum/mindboggle123/process"
)

// ApplyArgs configures an antsApplyTransforms run.
type ApplyArgs struct {
	Name      string
	Input     string
	Reference string
	Output    string
	// Transforms are passed with -t in order.
	Transforms []string
	Threads    int
}

// ApplyTransforms resamples a label image with nearest-neighbor interpolation.
func ApplyTransforms(a ApplyArgs) process.Command {
	args := []string{
		"-d", "3",
		"-i", a.Input,
		"-r", a.Reference,
		"-o", a.Output,
		"-n", "NearestNeighbor",
	}
	for _, t := range a.Transforms {
		args = append(args, "-t", t)
	}
	return process.Command{Name: a.Name, Binary: "antsApplyTransforms", Args: args, Env: threadsEnv(a.Threads)}
}

// FusionArgs configures an antsJointFusion run.
type FusionArgs struct {
	Target string
	// Atlases and Labels are paired by index.
	Atlases []string
	Labels  []string
	Mask    string
	Output  string
	Threads int
}

// JointFusion builds the antsJointFusion command with fixed weighting
// parameters.
func JointFusion(a FusionArgs) process.Command {
	args := []string{"-d", "3", "-t", a.Target}
	for i := range a.Atlases {
		args = append(args, "-g", a.Atlases[i], "-l", a.Labels[i])
	}
	args = append(args,
		"-x", a.Mask,
		"-a", "0.1",
		"-b", "2.0",
		"-c", "0",
		"-p", "2x2x2",
		"-s", "3x3x3",
		"-o", a.Output,
	)
	return process.Command{Name: "joint-fusion", Binary: "antsJointFusion", Args: args, Env: threadsEnv(a.Threads)}
}

// Cortical label values in the DKT31 CMA protocol.
const (
	corticalLabelMin = "1000"
	corticalLabelMax = "2999"
)

// MaskFiles names the intermediate and final files of the label masker.
type MaskFiles struct {
	ThicknessMask string
	CortexMask    string
	KeepMask      string
	Masked        string
}

// MaskLabels returns the four commands that zero every non-cortical label
// lying outside the thickness-positive mask.
func MaskLabels(labels, thickness string, f MaskFiles) []process.Command {
	return []process.Command{
		{Name: "threshold-thickness", Binary: "ThresholdImage",
			Args: []string{"3", thickness, f.ThicknessMask, "1e-6", "1e9", "1", "0"}},
		{Name: "threshold-cortex", Binary: "ThresholdImage",
			Args: []string{"3", labels, f.CortexMask, corticalLabelMin, corticalLabelMax, "1", "0"}},
		{Name: "keep-mask", Binary: "ImageMath",
			Args: []string{"3", f.KeepMask, "max", f.ThicknessMask, f.CortexMask}},
		{Name: "mask-labels", Binary: "ImageMath",
			Args: []string{"3", f.Masked, "m", labels, f.KeepMask}},
	}
}

// LabelGeometry builds the LabelGeometryMeasures command writing csv.
func LabelGeometry(labels, csv string) process.Command {
	return process.Command{
		Name:   "label-measures",
		Binary: "LabelGeometryMeasures",
		Args:   []string{"3", labels, "none", csv},
	}
}
