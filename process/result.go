package process

import (
	"strings"
	"time"
)

// Result holds the output and status of a completed subprocess.
type Result struct {
	// Stdout is the captured standard output.
	Stdout []byte
	// Stderr is the captured standard error.
	Stderr []byte
	// ExitCode is the process exit code. -1 if the process was killed or never started.
	ExitCode int
	// Duration is how long the process ran.
	Duration time.Duration
}

// StderrTail returns at most the last n lines of stderr.
func (r *Result) StderrTail(n int) string {
	if r == nil {
		return ""
	}
	return tail(string(r.Stderr), n)
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
