package dag

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/kbukum/mindboggle123/errors"
	"github.com/kbukum/mindboggle123/logger"
)

// CrashReporter writes a plain-text report for every failed node.
type CrashReporter struct {
	Fs  afero.Fs
	Dir string
	// Now is the clock used for report names; defaults to time.Now.
	Now func() time.Time

	mu      sync.Mutex
	reports []string
}

// NewCrashReporter creates a reporter writing into dir on fsys.
func NewCrashReporter(fsys afero.Fs, dir string) *CrashReporter {
	return &CrashReporter{Fs: fsys, Dir: dir, Now: time.Now}
}

// Hook returns an engine hook that reports failed nodes. Reports that cannot
// be written are logged and otherwise ignored.
func (r *CrashReporter) Hook() Hook {
	return func(_ context.Context, nr NodeResult) {
		if nr.Status != StatusFailed {
			return
		}
		if _, err := r.Report(nr); err != nil {
			logger.Get("dag").Warn("failed to write crash report", logger.MergeWithError(
				logger.Fields(logger.FieldNode, nr.Name), err))
		}
	}
}

// Report writes crash-<YYYYmmdd-HHMMSS>-<node>-<uuid>.txt and returns its path.
func (r *CrashReporter) Report(nr NodeResult) (string, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	ts := now()

	if err := r.Fs.MkdirAll(r.Dir, 0o755); err != nil {
		return "", errors.Filesystem("mkdir", r.Dir, err)
	}
	name := fmt.Sprintf("crash-%s-%s-%s.txt", ts.Format("20060102-150405"), safeName(nr.Name), uuid.NewString())
	path := filepath.Join(r.Dir, name)

	if err := afero.WriteFile(r.Fs, path, []byte(formatCrash(nr, ts)), 0o644); err != nil {
		return "", errors.Filesystem("write", path, err)
	}

	r.mu.Lock()
	r.reports = append(r.reports, path)
	r.mu.Unlock()
	return path, nil
}

// Reports returns the paths written so far.
func (r *CrashReporter) Reports() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reports...)
}

func formatCrash(nr NodeResult, ts time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Node: %s\n", nr.Name)
	fmt.Fprintf(&b, "Time: %s\n", ts.Format(time.RFC3339))
	fmt.Fprintf(&b, "Duration: %s\n", nr.Duration)
	if nr.Error != nil {
		fmt.Fprintf(&b, "Error: %v\n", nr.Error)
	}

	appErr, ok := errors.AsAppError(nr.Error)
	if !ok {
		return b.String()
	}
	fmt.Fprintf(&b, "Code: %s\n", appErr.Code)

	var stderrTail string
	keys := make([]string, 0, len(appErr.Details))
	for k := range appErr.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch k {
		case "command":
			fmt.Fprintf(&b, "Command: %v\n", appErr.Details[k])
		case "stderr_tail":
			stderrTail, _ = appErr.Details[k].(string)
		default:
			fmt.Fprintf(&b, "%s: %v\n", k, appErr.Details[k])
		}
	}
	if stderrTail != "" {
		fmt.Fprintf(&b, "\nStderr (tail):\n%s\n", stderrTail)
	}
	return b.String()
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, s)
}
