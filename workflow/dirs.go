package workflow

import (
	"github.com/spf13/afero"

	"github.com/kbukum/mindboggle123/errors"
)

// Directories lists the directories a run writes into: the output root, the
// working directory and the three per-tool output directories.
func (c PipelineConfig) Directories() []string {
	return []string{c.Out, c.Working, c.FreeSurferDir(), c.ANTsDir(), c.MindboggleDir()}
}

// Provision creates every directory of cfg that does not exist yet. It is
// safe to call repeatedly.
func Provision(fs afero.Fs, cfg PipelineConfig) error {
	for _, dir := range cfg.Directories() {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return errors.Filesystem("mkdir", dir, err)
		}
	}
	return nil
}
