package process

import (
	"io"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
)

// Command configures a subprocess to execute.
type Command struct {
	// Name labels the command in errors and logs. Defaults to Binary.
	Name string
	// Binary is the executable path or name (resolved via PATH).
	Binary string
	// Args are the command-line arguments.
	Args []string
	// Dir is the working directory. If empty, uses the current directory.
	Dir string
	// Env is additional environment variables (key=value). Merged with os.Environ.
	Env []string
	// Stdin provides input to the process. May be nil.
	Stdin io.Reader
	// Log, when set, receives a copy of stdout and stderr as they are produced.
	Log io.Writer
	// GracePeriod is how long to wait after SIGTERM before SIGKILL.
	// Defaults to 5 seconds if zero.
	GracePeriod time.Duration
}

// Shell returns a command that runs script through sh -c.
func Shell(name, script string) Command {
	return Command{Name: name, Binary: "sh", Args: []string{"-c", script}}
}

// Argv returns the binary followed by its arguments.
func (c Command) Argv() []string {
	return append([]string{c.Binary}, c.Args...)
}

// String renders the command as a shell-quoted command line.
func (c Command) String() string {
	argv := c.Argv()
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = Quote(a)
	}
	return strings.Join(quoted, " ")
}

func (c Command) label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Binary
}

// Quote single-quotes s when it contains characters the shell would
// interpret, including the glob brackets of ANTs option values.
func Quote(s string) string {
	return shellescape.Quote(s)
}
