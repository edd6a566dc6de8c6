package bootstrap

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// SettingInfo is one resolved setting shown before the task starts.
type SettingInfo struct {
	Key   string
	Value string
}

// StepInfo is the outcome of one unit of work inside the task.
type StepInfo struct {
	Name     string
	Status   string
	Duration time.Duration
	Detail   string
}

// Summary tracks and displays the application run.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	runDuration     time.Duration
	out             io.Writer

	mu       sync.Mutex
	settings []SettingInfo
	steps    []StepInfo
}

// NewSummary creates a new run summary tracker writing to stderr.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{
		serviceName: serviceName,
		version:     version,
		out:         os.Stderr,
	}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// SetRunDuration records how long the task ran.
func (s *Summary) SetRunDuration(d time.Duration) {
	s.runDuration = d
}

// TrackSetting records a resolved setting.
func (s *Summary) TrackSetting(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = append(s.settings, SettingInfo{Key: key, Value: value})
}

// TrackStep records the outcome of a step. Safe for concurrent use.
func (s *Summary) TrackStep(name, status string, d time.Duration, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, StepInfo{Name: name, Status: status, Duration: d, Detail: detail})
}

// Steps returns a copy of the tracked steps.
func (s *Summary) Steps() []StepInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StepInfo(nil), s.steps...)
}

// DisplayStartup prints the header and resolved settings.
func (s *Summary) DisplayStartup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintf(s.out, "\n")
	fmt.Fprintf(s.out, "🚀 %s v%s ready in %.2fs\n", s.serviceName, s.version, s.startupDuration.Seconds())

	if len(s.settings) > 0 {
		fmt.Fprintf(s.out, "\n⚙️  Settings\n")
		for i, st := range s.settings {
			fmt.Fprintf(s.out, "   %s %s: %s\n", treePrefix(i, len(s.settings)), st.Key, st.Value)
		}
	}
	fmt.Fprintf(s.out, "\n")
}

// DisplayResult prints every tracked step and the overall outcome.
func (s *Summary) DisplayResult(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.steps) > 0 {
		fmt.Fprintf(s.out, "\n📦 Steps\n")
		counts := make(map[string]int)
		for i, st := range s.steps {
			counts[st.Status]++
			line := fmt.Sprintf("   %s %s %s (%s", treePrefix(i, len(s.steps)), statusIcon(st.Status), st.Name, st.Status)
			if st.Duration > 0 {
				line += fmt.Sprintf(", %s", st.Duration.Round(time.Millisecond))
			}
			line += ")"
			if st.Detail != "" {
				line += fmt.Sprintf(" - %s", st.Detail)
			}
			fmt.Fprintln(s.out, line)
		}
		fmt.Fprintf(s.out, "\n   completed=%d cached=%d skipped=%d failed=%d\n",
			counts["completed"], counts["cached"], counts["skipped"], counts["failed"])
	}

	fmt.Fprintf(s.out, "\n")
	if err != nil {
		fmt.Fprintf(s.out, "❌ %s failed after %.2fs: %v\n\n", s.serviceName, s.runDuration.Seconds(), err)
		return
	}
	fmt.Fprintf(s.out, "✅ %s finished in %.2fs\n\n", s.serviceName, s.runDuration.Seconds())
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func statusIcon(status string) string {
	switch status {
	case "completed":
		return "✅"
	case "cached":
		return "⚡"
	case "skipped":
		return "⏸️"
	case "failed":
		return "❌"
	default:
		return "⚠️"
	}
}
