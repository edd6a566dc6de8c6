package freesurfer

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kbukum/mindboggle123/errors"
	"github.com/kbukum/mindboggle123/process"
)

// DoneMarker is written by recon-all when every stage succeeded.
const DoneMarker = "scripts/recon-all.done"

// ReconArgs configures one recon-all run.
type ReconArgs struct {
	Subject     string
	SubjectsDir string
	Image       string
	// T2 is an optional T2-weighted image used for pial refinement.
	T2     string
	OpenMP int
	// Flags are appended verbatim; each must start with "-".
	Flags []string
}

// ReconAll builds the recon-all command.
func ReconAll(a ReconArgs) process.Command {
	args := []string{"-all", "-s", a.Subject, "-sd", a.SubjectsDir, "-i", a.Image}
	if a.T2 != "" {
		args = append(args, "-T2", a.T2, "-T2pial")
	}
	if a.OpenMP > 1 {
		args = append(args, "-openmp", strconv.Itoa(a.OpenMP))
	}
	args = append(args, a.Flags...)

	return process.Command{
		Name:   "recon-all",
		Binary: "recon-all",
		Args:   args,
		Env:    []string{"SUBJECTS_DIR=" + a.SubjectsDir},
	}
}

// SubjectDir is where recon-all writes the subject.
func SubjectDir(subjectsDir, subject string) string {
	return filepath.Join(subjectsDir, subject)
}

// Done returns the completion marker path inside a subject directory.
func Done(subjectDir string) string {
	return filepath.Join(subjectDir, DoneMarker)
}

// ValidateFlags checks that every extra flag looks like an option.
func ValidateFlags(flags []string) error {
	for _, f := range flags {
		if !strings.HasPrefix(f, "-") {
			return errors.Configuration("fs_flags", fmt.Sprintf("flag %q must start with \"-\"", f))
		}
	}
	return nil
}
