package workflow

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kbukum/mindboggle123/dag"
	"github.com/kbukum/mindboggle123/process"
)

// MindboggleArgs are the resolved inputs of the mindboggle invocation.
type MindboggleArgs struct {
	Subject string
	// FreeSurferDir holds <Subject>/ as written by recon-all.
	FreeSurferDir string
	// ANTsDir holds <Subject>/<ANTsSeg>.
	ANTsDir string
	ANTsSeg string
	OutDir  string
	Prov    bool
	// ExtraArgs is appended verbatim.
	ExtraArgs string
	Threads   int
}

// MindboggleCommand builds the mindboggle command line. The multiprocessing
// plugin is requested only when more than one thread is allowed.
func MindboggleCommand(a MindboggleArgs) string {
	parts := []string{
		"mindboggle",
		process.Quote(filepath.Join(a.FreeSurferDir, a.Subject)),
		"--out", process.Quote(a.OutDir),
		"--ants", process.Quote(filepath.Join(a.ANTsDir, a.Subject, a.ANTsSeg)),
	}
	if a.Prov {
		parts = append(parts, "--prov")
	}
	if extra := strings.TrimSpace(a.ExtraArgs); extra != "" {
		parts = append(parts, extra)
	}
	if a.Threads > 1 {
		parts = append(parts, "--plugin", "MultiProc",
			"--plugin_args", fmt.Sprintf(`"dict(n_procs=%d)"`, a.Threads))
	}
	return strings.Join(parts, " ")
}

// mindboggleNode runs the command through sh in the current directory and
// returns the command line as its result.
func (b *Builder) mindboggleNode() *commandNode {
	cfg := b.cfg
	return b.newCommandNode("mindboggle",
		specs(PortFSSubjectDir, PortSegmentation, PortMeasures),
		specs(PortCommand),
		func(r *reader) plan {
			subjectDir := readPort(r, PortFSSubjectDir)
			seg := readPort(r, PortSegmentation)
			readPort(r, PortMeasures)

			line := MindboggleCommand(MindboggleArgs{
				Subject:       cfg.ID,
				FreeSurferDir: filepath.Dir(subjectDir),
				ANTsDir:       cfg.ANTsDir(),
				ANTsSeg:       filepath.Base(seg),
				OutDir:        cfg.MindboggleDir(),
				Prov:          cfg.Prov,
				ExtraArgs:     cfg.MB.Args,
				Threads:       cfg.MB.NumThreads,
			})
			return plan{
				commands: []process.Command{process.Shell("mindboggle", line)},
				requires: []string{subjectDir, seg},
				inputs:   []string{subjectDir, seg},
				outputs:  []string{filepath.Join(cfg.MindboggleDir(), cfg.ID)},
				publish:  func(s *dag.State) { dag.Write(s, PortCommand, line) },
				result:   line,
			}
		})
}
