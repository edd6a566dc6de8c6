package main

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/kbukum/mindboggle123/config"
	"github.com/kbukum/mindboggle123/errors"
	"github.com/kbukum/mindboggle123/version"
	"github.com/kbukum/mindboggle123/workflow"
)

const (
	serviceName = "mindboggle123"
	envPrefix   = "MINDBOGGLE"
)

// AppConfig is everything the command reads from flags, the config file and
// MINDBOGGLE_* environment variables.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
	workflow.Options     `yaml:",inline" mapstructure:",squash"`

	pipeline workflow.PipelineConfig
}

// ApplyDefaults fills the service and workflow defaults.
func (c *AppConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	if c.Version == "" {
		c.Version = version.Version
	}
	c.ServiceConfig.ApplyDefaults()
	c.Options.ApplyDefaults()
}

// Validate checks the service settings and resolves the pipeline settings.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	p, err := workflow.Resolve(c.Options)
	if err != nil {
		return err
	}
	c.pipeline = p
	return nil
}

// Pipeline returns the settings resolved by Validate.
func (c *AppConfig) Pipeline() workflow.PipelineConfig {
	return c.pipeline
}

const usage = `mindboggle123 runs FreeSurfer recon-all, ANTs cortical thickness, atlas
labeling and Mindboggle on one T1-weighted image.

Usage:
  mindboggle123 [options] IMAGE

Arguments:
  IMAGE
    T1-weighted MR image (NIfTI or MGZ).

Options:
`

func newFlagSet(out io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(serviceName, pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.SortFlags = false
	fs.Usage = func() {
		fmt.Fprint(out, usage)
		fs.PrintDefaults()
	}

	fs.String("id", "", "subject identifier (required)")
	fs.String("out", workflow.DefaultOut, "output directory")
	fs.String("working", workflow.DefaultWorking, "working directory for intermediate files")
	fs.String("template", workflow.DefaultTemplate, "OASIS-30 template and atlas directory")
	fs.Bool("skip_freesurfer", false, "use existing recon-all output in <out>/freesurfer_subjects")
	fs.Bool("skip_ants", false, "use existing antsCorticalThickness output in <out>/ants_subjects")
	fs.String("plugin", string(workflow.PluginSequential), "execution plugin: sequential or multiproc")
	fs.String("plugin_args", "", `plugin arguments, e.g. "n_procs=4,stop_on_first_crash=true"`)
	fs.Int("fs_openmp", 1, "OpenMP threads for recon-all")
	fs.String("fs_T2image", "", "optional T2-weighted image for recon-all")
	fs.StringSlice("fs_flags", nil, "extra recon-all flags, each starting with '-' (repeatable)")
	fs.Int("ants_num_threads", 1, "threads for ANTs")
	fs.String("ants_seg", string(workflow.SegQuick), "labeling method: quick or fusion")
	fs.Int("ants_segN", 0, "atlases used by fusion labeling, 2 to 20 (default all found)")
	fs.Int("mb_num_threads", 1, "threads for mindboggle")
	fs.String("mb_args", "", "extra arguments appended to the mindboggle command")
	fs.Bool("prov", false, "ask mindboggle to record provenance")
	fs.String("hash_method", "content", "input change detection: content or timestamp")
	fs.String("crashdump_dir", "", "crash report directory (default <working>/crash)")
	fs.String("config", "", "YAML config file")
	fs.String("log_level", "info", "log level: debug, info, warn or error")
	fs.Bool("version", false, "print the version and exit")
	return fs
}

// parseArgs turns the command line into a loaded AppConfig. The boolean is
// true when the command should exit 0 without running, as for --help and
// --version. Flags given explicitly win over the config file and the
// environment; flag defaults sit below both.
func parseArgs(args []string, out io.Writer, opts ...config.LoaderOption) (*AppConfig, bool, error) {
	fs := newFlagSet(out)
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, errors.Configuration("flags", err.Error()).WithCause(err)
	}

	if v, _ := fs.GetBool("version"); v {
		fmt.Fprintf(out, "%s %s\n", serviceName, version.GetFullVersion())
		return nil, true, nil
	}
	if fs.NArg() > 1 {
		return nil, false, errors.Configuration("image", fmt.Sprintf("expected one IMAGE argument, got %d", fs.NArg()))
	}

	loaderOpts := []config.LoaderOption{config.WithEnvPrefix(envPrefix), config.WithFlags(fs)}
	if path, _ := fs.GetString("config"); path != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(path))
	}
	loaderOpts = append(loaderOpts, opts...)

	cfg := &AppConfig{}
	if err := config.LoadConfig(serviceName, cfg, loaderOpts...); err != nil {
		return nil, false, err
	}
	if fs.NArg() == 1 {
		cfg.Image = fs.Arg(0)
	}
	if fs.Changed("log_level") {
		cfg.Logging.Level, _ = fs.GetString("log_level")
	}
	return cfg, false, nil
}
