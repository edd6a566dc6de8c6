package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

var (
	// These variables are set at build time using -ldflags
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

// Info represents version information.
type Info struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildDate time.Time `json:"build_date"`
	GoVersion string    `json:"go_version"`
	Platform  string    `json:"platform"`
	IsDirty   bool      `json:"is_dirty"`
}

// GetVersionInfo merges ldflags values with the embedded build info.
func GetVersionInfo() *Info {
	info := &Info{
		Version:   Version,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
		info.BuildDate = t
	}

	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range buildInfo.Settings {
			switch setting.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = setting.Value
				}
			case "vcs.modified":
				info.IsDirty = setting.Value == "true"
			case "vcs.time":
				if info.BuildDate.IsZero() {
					if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
						info.BuildDate = t
					}
				}
			}
		}
	}
	if len(info.GitCommit) > 7 {
		info.GitCommit = info.GitCommit[:7]
	}
	return info
}

// IsRelease reports whether the binary was built from a tagged, clean tree.
func (i *Info) IsRelease() bool {
	return i.Version != "dev" && !i.IsDirty && !strings.Contains(i.Version, "dirty")
}

// GetVersion returns the bare version string.
func GetVersion() string {
	return Version
}

// GetFullVersion returns a one-line version string for --version output.
func GetFullVersion() string {
	info := GetVersionInfo()
	parts := []string{info.Version}
	if info.GitCommit != "" {
		parts = append(parts, info.GitCommit)
	}
	if info.IsDirty {
		parts = append(parts, "dirty")
	}
	line := strings.Join(parts, "-")
	if !info.BuildDate.IsZero() {
		line += fmt.Sprintf(" (built %s)", info.BuildDate.UTC().Format("2006-01-02T15:04:05Z"))
	}
	return fmt.Sprintf("%s %s %s", line, info.GoVersion, info.Platform)
}
