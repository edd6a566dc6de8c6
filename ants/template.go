package ants

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/kbukum/mindboggle123/errors"
)

// Template asset names, relative to the template directory.
const (
	BrainTemplate        = "T_template0.nii.gz"
	ProbabilityMask      = "T_template0_BrainCerebellumProbabilityMask.nii.gz"
	ExtractionMask       = "T_template0_BrainCerebellumExtractionMask.nii.gz"
	RegistrationTemplate = "T_template0_BrainCerebellum.nii.gz"
	PriorsPattern        = "Priors2/priors%d.nii.gz"
	NumPriors            = 6

	// TemplateLabels are the DKT31 labels in template space used by quick labeling.
	TemplateLabels = "OASIS-TRT-20_jointfusion_DKT31_CMA_labels_in_OASIS-30_v2.nii.gz"
)

// MaxAtlases is the number of OASIS-TRT-20 atlases.
const MaxAtlases = 20

// Template resolves asset paths under a template directory.
type Template struct {
	Dir string
}

// Path joins name onto the template directory.
func (t Template) Path(name string) string {
	return filepath.Join(t.Dir, name)
}

// Priors returns the path pattern passed to antsCorticalThickness.sh -p.
func (t Template) Priors() string {
	return t.Path(PriorsPattern)
}

// PriorFiles expands the priors pattern into its NumPriors files.
func (t Template) PriorFiles() []string {
	files := make([]string, NumPriors)
	for i := range files {
		files[i] = t.Path(fmt.Sprintf(PriorsPattern, i+1))
	}
	return files
}

// ThicknessAssets lists every template file antsCorticalThickness.sh reads.
func (t Template) ThicknessAssets() []string {
	assets := []string{
		t.Path(BrainTemplate),
		t.Path(ProbabilityMask),
		t.Path(ExtractionMask),
		t.Path(RegistrationTemplate),
	}
	return append(assets, t.PriorFiles()...)
}

// Atlas is one labeled OASIS-TRT-20 brain.
type Atlas struct {
	Index  int
	Brain  string
	Labels string
}

// AtlasPaths returns the brain and label paths of atlas i (1-based).
func (t Template) AtlasPaths(i int) Atlas {
	return Atlas{
		Index:  i,
		Brain:  t.Path(fmt.Sprintf("OASIS-TRT-20_brains/OASIS-TRT-20-%d.nii.gz", i)),
		Labels: t.Path(fmt.Sprintf("OASIS-TRT-20_DKT31_CMA_labels_v2/OASIS-TRT-20-%d_DKT31_CMA_labels.nii.gz", i)),
	}
}

// DiscoverAtlases returns the atlases whose brain and label files both exist,
// in index order.
func (t Template) DiscoverAtlases(fs afero.Fs) ([]Atlas, error) {
	var found []Atlas
	for i := 1; i <= MaxAtlases; i++ {
		a := t.AtlasPaths(i)
		ok, err := bothExist(fs, a.Brain, a.Labels)
		if err != nil {
			return nil, err
		}
		if ok {
			found = append(found, a)
		}
	}
	return found, nil
}

func bothExist(fs afero.Fs, paths ...string) (bool, error) {
	for _, p := range paths {
		ok, err := afero.Exists(fs, p)
		if err != nil {
			return false, errors.Filesystem("stat", p, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
