package workflow

import (
	"fmt"

	"github.com/kbukum/mindboggle123/ants"
	"github.com/kbukum/mindboggle123/dag"
)

// Seeded inputs.
var (
	PortImage       = dag.Port[string]{Key: "image"}
	PortSubject     = dag.Port[string]{Key: "subject"}
	PortSubjectsDir = dag.Port[string]{Key: "fs.subjects_dir"}
)

// Reconstruction output.
var PortFSSubjectDir = dag.Port[string]{Key: "fs.subject_dir"}

// Thickness estimation outputs.
var (
	PortSegmentation = dag.Port[string]{Key: "ants.segmentation"}
	PortThickness    = dag.Port[string]{Key: "ants.thickness"}
	PortBrain        = dag.Port[string]{Key: "ants.brain"}
	PortBrainMask    = dag.Port[string]{Key: "ants.brain_mask"}
	PortTransforms   = dag.Port[[]string]{Key: "ants.transforms"}
)

// Labeling outputs. Every labeling strategy ends in PortLabels.
var (
	PortLabels       = dag.Port[string]{Key: "labels.subject"}
	PortMaskedLabels = dag.Port[string]{Key: "labels.masked"}
	PortMeasures     = dag.Port[string]{Key: "labels.measures"}
)

// PortCommand carries the mindboggle command line.
var PortCommand = dag.Port[string]{Key: "mindboggle.command"}

var portQuickTransforms = dag.Port[ants.Transforms]{Key: "quick.transforms"}

func atlasTransformsPort(i int) dag.Port[ants.Transforms] {
	return dag.Port[ants.Transforms]{Key: fmt.Sprintf("fusion.atlas%d.transforms", i)}
}

func atlasBrainPort(i int) dag.Port[string] {
	return dag.Port[string]{Key: fmt.Sprintf("fusion.atlas%d.brain", i)}
}

func atlasLabelsPort(i int) dag.Port[string] {
	return dag.Port[string]{Key: fmt.Sprintf("fusion.atlas%d.labels", i)}
}

// reader reads ports from state and keeps the first error.
type reader struct {
	state *dag.State
	err   error
}

func readPort[T any](r *reader, p dag.Port[T]) T {
	var zero T
	if r.err != nil {
		return zero
	}
	v, err := dag.Read(r.state, p)
	if err != nil {
		r.err = err
		return zero
	}
	return v
}
