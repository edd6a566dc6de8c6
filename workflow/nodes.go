package workflow

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/kbukum/mindboggle123/dag"
	"github.com/kbukum/mindboggle123/errors"
	"github.com/kbukum/mindboggle123/logger"
	"github.com/kbukum/mindboggle123/process"
)

// Runner executes one external command.
type Runner func(ctx context.Context, cmd process.Command) (*process.Result, error)

// plan is what a command node does for one set of input values.
type plan struct {
	commands []process.Command
	// requires must exist before the first command starts.
	requires []string
	// mkdirs are created before the first command starts.
	mkdirs []string
	// inputs and outputs feed the fingerprint.
	inputs  []string
	outputs []string
	// publish writes the node's output ports.
	publish func(state *dag.State)
	result  any
}

// commandNode runs external tools. Its output ports carry file paths that are
// fixed by the configuration, so a cache hit can publish them without running.
type commandNode struct {
	name    string
	in, out []dag.PortSpec
	// dir receives the node's log and intermediate files.
	dir  string
	plan func(r *reader) plan

	run Runner
	fs  afero.Fs
	log *logger.Logger
}

var (
	_ dag.Ported    = (*commandNode)(nil)
	_ dag.Cacheable = (*commandNode)(nil)
)

func (n *commandNode) Name() string             { return n.name }
func (n *commandNode) Inputs() []dag.PortSpec  { return n.in }
func (n *commandNode) Outputs() []dag.PortSpec { return n.out }

func (n *commandNode) resolve(state *dag.State) (plan, error) {
	r := &reader{state: state}
	p := n.plan(r)
	if r.err != nil {
		return plan{}, errors.Internal(r.err).WithDetail("node", n.name)
	}
	return p, nil
}

// Run checks required inputs, then runs each command in order. Tool output
// is appended to <dir>/<name>.log.
func (n *commandNode) Run(ctx context.Context, state *dag.State) (any, error) {
	p, err := n.resolve(state)
	if err != nil {
		return nil, err
	}
	for _, path := range p.requires {
		ok, err := afero.Exists(n.fs, path)
		if err != nil {
			return nil, errors.Filesystem("stat", path, err)
		}
		if !ok {
			return nil, errors.MissingInput(n.name, path)
		}
	}

	for _, dir := range append([]string{n.dir}, p.mkdirs...) {
		if err := n.fs.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Filesystem("mkdir", dir, err)
		}
	}
	logPath := filepath.Join(n.dir, n.name+".log")
	logFile, err := n.fs.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Filesystem("open", logPath, err)
	}
	defer logFile.Close()

	for _, cmd := range p.commands {
		cmd.Log = logFile
		n.log.Info("Running command", logger.Fields(
			logger.FieldNode, n.name,
			logger.FieldCommand, cmd.String(),
		))
		if _, err := n.run(ctx, cmd); err != nil {
			return nil, err
		}
	}

	if p.publish != nil {
		p.publish(state)
	}
	return p.result, nil
}

func (n *commandNode) CacheKey(state *dag.State) (dag.CacheKey, error) {
	p, err := n.resolve(state)
	if err != nil {
		return dag.CacheKey{}, err
	}
	key := dag.CacheKey{Inputs: p.inputs, Outputs: p.outputs}
	for _, cmd := range p.commands {
		key.Commands = append(key.Commands, cmd.Argv())
		key.Env = append(key.Env, cmd.Env...)
	}
	return key, nil
}

func (n *commandNode) Publish(state *dag.State) (any, error) {
	p, err := n.resolve(state)
	if err != nil {
		return nil, err
	}
	if p.publish != nil {
		p.publish(state)
	}
	return p.result, nil
}

// commandStrings renders cmds for the node result.
func commandStrings(cmds ...process.Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.String()
	}
	return out
}

func specs(ports ...interface{ Spec() dag.PortSpec }) []dag.PortSpec {
	out := make([]dag.PortSpec, len(ports))
	for i, p := range ports {
		out[i] = p.Spec()
	}
	return out
}
