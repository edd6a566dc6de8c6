package ants

import (
	"strconv"

	"github.com/kbukum/mindboggle123/process"
)

// ThreadsEnv is the variable ITK reads for its default thread count.
const ThreadsEnv = "ITK_GLOBAL_DEFAULT_NUMBER_OF_THREADS"

// ThicknessArgs configures one antsCorticalThickness.sh run.
type ThicknessArgs struct {
	Image    string
	Template Template
	// Prefix is the output prefix, e.g. <out>/ants_subjects/<id>/ants.
	Prefix  string
	Threads int
}

// CorticalThickness builds the antsCorticalThickness.sh command.
func CorticalThickness(a ThicknessArgs) process.Command {
	return process.Command{
		Name:   "antsCorticalThickness",
		Binary: "antsCorticalThickness.sh",
		Args: []string{
			"-d", "3",
			"-a", a.Image,
			"-e", a.Template.Path(BrainTemplate),
			"-m", a.Template.Path(ProbabilityMask),
			"-f", a.Template.Path(ExtractionMask),
			"-p", a.Template.Priors(),
			"-t", a.Template.Path(RegistrationTemplate),
			"-o", a.Prefix,
		},
		Env: threadsEnv(a.Threads),
	}
}

// ThicknessOutputs names the files antsCorticalThickness.sh writes for a prefix.
type ThicknessOutputs struct {
	Prefix string
}

func (o ThicknessOutputs) Segmentation() string { return o.Prefix + SegmentationName }
func (o ThicknessOutputs) Thickness() string    { return o.Prefix + "CorticalThickness.nii.gz" }
func (o ThicknessOutputs) Brain() string        { return o.Prefix + "ExtractedBrain0N4.nii.gz" }
func (o ThicknessOutputs) BrainMask() string    { return o.Prefix + "BrainExtractionMask.nii.gz" }

func (o ThicknessOutputs) SubjectToTemplateAffine() string {
	return o.Prefix + "SubjectToTemplate0GenericAffine.mat"
}

func (o ThicknessOutputs) SubjectToTemplateWarp() string {
	return o.Prefix + "SubjectToTemplate1Warp.nii.gz"
}

func (o ThicknessOutputs) TemplateToSubjectWarp() string {
	return o.Prefix + "TemplateToSubject0Warp.nii.gz"
}

// All lists every output in a stable order.
func (o ThicknessOutputs) All() []string {
	return []string{
		o.Segmentation(),
		o.Thickness(),
		o.Brain(),
		o.BrainMask(),
		o.SubjectToTemplateAffine(),
		o.SubjectToTemplateWarp(),
		o.TemplateToSubjectWarp(),
	}
}

// SegmentationName is the file name suffix of the tissue segmentation.
const SegmentationName = "BrainSegmentation.nii.gz"

func threadsEnv(n int) []string {
	if n < 1 {
		n = 1
	}
	return []string{ThreadsEnv + "=" + strconv.Itoa(n)}
}
