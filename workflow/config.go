package workflow

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/kbukum/mindboggle123/dag"
	"github.com/kbukum/mindboggle123/errors"
	"github.com/kbukum/mindboggle123/freesurfer"
	"github.com/kbukum/mindboggle123/validation"
)

// Default locations used when the corresponding flag is not given.
const (
	DefaultOut      = "/home/jovyan/work/mindboggle123_output"
	DefaultWorking  = DefaultOut + "/working"
	DefaultTemplate = "/opt/data/OASIS-30_Atropos_template"
)

// WorkflowName names the graph and its directory under the working directory.
const WorkflowName = "Mindboggle123"

// Options holds the raw settings as they arrive from flags, the config file
// and the environment. Keys match the command-line flag names.
type Options struct {
	Image          string   `yaml:"image" mapstructure:"image" validate:"required"`
	ID             string   `yaml:"id" mapstructure:"id" validate:"required"`
	Out            string   `yaml:"out" mapstructure:"out" validate:"required"`
	Working        string   `yaml:"working" mapstructure:"working" validate:"required"`
	Template       string   `yaml:"template" mapstructure:"template" validate:"required"`
	SkipFreeSurfer bool     `yaml:"skip_freesurfer" mapstructure:"skip_freesurfer"`
	SkipANTs       bool     `yaml:"skip_ants" mapstructure:"skip_ants"`
	Plugin         string   `yaml:"plugin" mapstructure:"plugin"`
	PluginArgs     string   `yaml:"plugin_args" mapstructure:"plugin_args"`
	FSOpenMP       int      `yaml:"fs_openmp" mapstructure:"fs_openmp" validate:"min=1"`
	FST2Image      string   `yaml:"fs_T2image" mapstructure:"fs_t2image"`
	FSFlags        []string `yaml:"fs_flags" mapstructure:"fs_flags"`
	ANTsNumThreads int      `yaml:"ants_num_threads" mapstructure:"ants_num_threads" validate:"min=1"`
	ANTsSeg        string   `yaml:"ants_seg" mapstructure:"ants_seg" validate:"oneof=quick fusion"`
	ANTsSegN       int      `yaml:"ants_segN" mapstructure:"ants_segn" validate:"omitempty,min=2,max=20"`
	MBNumThreads   int      `yaml:"mb_num_threads" mapstructure:"mb_num_threads" validate:"min=1"`
	MBArgs         string   `yaml:"mb_args" mapstructure:"mb_args"`
	Prov           bool     `yaml:"prov" mapstructure:"prov"`
	HashMethod     string   `yaml:"hash_method" mapstructure:"hash_method"`
	CrashdumpDir   string   `yaml:"crashdump_dir" mapstructure:"crashdump_dir"`
}

// ApplyDefaults fills every unset option with its documented default.
func (o *Options) ApplyDefaults() {
	if o.Out == "" {
		o.Out = DefaultOut
	}
	if o.Working == "" {
		o.Working = DefaultWorking
	}
	if o.Template == "" {
		o.Template = DefaultTemplate
	}
	if o.Plugin == "" {
		o.Plugin = string(PluginSequential)
	}
	if o.FSOpenMP == 0 {
		o.FSOpenMP = 1
	}
	if o.ANTsNumThreads == 0 {
		o.ANTsNumThreads = 1
	}
	if o.ANTsSeg == "" {
		o.ANTsSeg = string(SegQuick)
	}
	if o.MBNumThreads == 0 {
		o.MBNumThreads = 1
	}
	if o.HashMethod == "" {
		o.HashMethod = string(dag.HashContent)
	}
}

// SegMode is the labeling strategy literal.
type SegMode string

const (
	SegQuick  SegMode = "quick"
	SegFusion SegMode = "fusion"
)

// ParseSegMode accepts exactly "quick" or "fusion".
func ParseSegMode(s string) (SegMode, error) {
	switch SegMode(s) {
	case SegQuick, SegFusion:
		return SegMode(s), nil
	}
	return "", errors.Configuration("ants_seg", fmt.Sprintf("must be one of: quick, fusion (got %q)", s))
}

// Plugin selects how the engine schedules nodes.
type Plugin string

const (
	PluginSequential Plugin = "sequential"
	PluginMultiProc  Plugin = "multiproc"
)

// ParsePlugin accepts the plugin names, case-insensitively, along with the
// Linear and MultiProc aliases.
func ParsePlugin(s string) (Plugin, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sequential", "linear":
		return PluginSequential, nil
	case "multiproc":
		return PluginMultiProc, nil
	}
	return "", errors.Configuration("plugin", fmt.Sprintf("must be one of: sequential, multiproc (got %q)", s))
}

// PluginArgs are the recognised scheduler settings.
type PluginArgs struct {
	// NProcs bounds concurrently running nodes; 0 means one per CPU.
	NProcs           int
	StopOnFirstCrash bool
}

// ParsePluginArgs parses a comma-separated key=value list such as
// "n_procs=4,stop_on_first_crash=true". A surrounding dict(...) is accepted.
// Values are parsed, never evaluated.
func ParsePluginArgs(s string) (PluginArgs, error) {
	var pa PluginArgs
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "dict(") && strings.HasSuffix(s, ")") {
		s = strings.TrimSuffix(strings.TrimPrefix(s, "dict("), ")")
	}
	if s == "" {
		return pa, nil
	}

	for _, item := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(item, "=")
		key, value = strings.TrimSpace(key), strings.Trim(strings.TrimSpace(value), `"'`)
		if !ok || key == "" {
			return PluginArgs{}, errors.Configuration("plugin_args", fmt.Sprintf("malformed entry %q, expected key=value", strings.TrimSpace(item)))
		}
		switch key {
		case "n_procs":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return PluginArgs{}, errors.Configuration("plugin_args", fmt.Sprintf("n_procs must be an integer >= 1 (got %q)", value))
			}
			pa.NProcs = n
		case "stop_on_first_crash":
			b, err := parseBool(value)
			if err != nil {
				return PluginArgs{}, errors.Configuration("plugin_args", fmt.Sprintf("stop_on_first_crash must be a boolean (got %q)", value))
			}
			pa.StopOnFirstCrash = b
		default:
			return PluginArgs{}, errors.Configuration("plugin_args", fmt.Sprintf("unknown key %q (recognised: n_procs, stop_on_first_crash)", key))
		}
	}
	return pa, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

// FreeSurferConfig holds recon-all settings.
type FreeSurferConfig struct {
	OpenMP  int
	T2Image string
	Flags   []string
}

// ANTsConfig holds antsCorticalThickness and labeling settings.
type ANTsConfig struct {
	NumThreads int
	Seg        SegMode
	// SegN is the number of fusion atlases; 0 selects every available atlas.
	SegN int
}

// MindboggleConfig holds mindboggle settings.
type MindboggleConfig struct {
	NumThreads int
	Args       string
}

// PipelineConfig is the resolved, immutable configuration of one run.
type PipelineConfig struct {
	Image          string
	ID             string
	Out            string
	Working        string
	Template       string
	SkipFreeSurfer bool
	SkipANTs       bool
	Plugin         Plugin
	PluginArgs     PluginArgs
	FS             FreeSurferConfig
	ANTs           ANTsConfig
	MB             MindboggleConfig
	Prov           bool
	HashMethod     dag.HashMethod
	CrashdumpDir   string
}

// Resolve validates o and converts it into a PipelineConfig. It touches no
// files.
func Resolve(o Options) (PipelineConfig, error) {
	o.ApplyDefaults()
	if err := validation.Validate(&o); err != nil {
		return PipelineConfig{}, err
	}
	// The subject id becomes a directory name under every output root.
	if err := validation.New().
		Pattern("id", o.ID, `^[^/\s]+$`).
		Custom(o.ID != "." && o.ID != "..", "id", "must name a directory").
		Validate(); err != nil {
		return PipelineConfig{}, err
	}

	seg, err := ParseSegMode(o.ANTsSeg)
	if err != nil {
		return PipelineConfig{}, err
	}
	plugin, err := ParsePlugin(o.Plugin)
	if err != nil {
		return PipelineConfig{}, err
	}
	pluginArgs, err := ParsePluginArgs(o.PluginArgs)
	if err != nil {
		return PipelineConfig{}, err
	}
	if err := freesurfer.ValidateFlags(o.FSFlags); err != nil {
		return PipelineConfig{}, err
	}
	hash, err := dag.ParseHashMethod(o.HashMethod)
	if err != nil {
		return PipelineConfig{}, err
	}

	crash := o.CrashdumpDir
	if crash == "" {
		crash = filepath.Join(o.Working, "crash")
	}

	return PipelineConfig{
		Image:          o.Image,
		ID:             o.ID,
		Out:            o.Out,
		Working:        o.Working,
		Template:       o.Template,
		SkipFreeSurfer: o.SkipFreeSurfer,
		SkipANTs:       o.SkipANTs,
		Plugin:         plugin,
		PluginArgs:     pluginArgs,
		FS: FreeSurferConfig{
			OpenMP:  o.FSOpenMP,
			T2Image: o.FST2Image,
			Flags:   append([]string(nil), o.FSFlags...),
		},
		ANTs: ANTsConfig{
			NumThreads: o.ANTsNumThreads,
			Seg:        seg,
			SegN:       o.ANTsSegN,
		},
		MB: MindboggleConfig{
			NumThreads: o.MBNumThreads,
			Args:       o.MBArgs,
		},
		Prov:         o.Prov,
		HashMethod:   hash,
		CrashdumpDir: crash,
	}, nil
}

// FreeSurferDir is Out/freesurfer_subjects.
func (c PipelineConfig) FreeSurferDir() string { return filepath.Join(c.Out, "freesurfer_subjects") }

// ANTsDir is Out/ants_subjects.
func (c PipelineConfig) ANTsDir() string { return filepath.Join(c.Out, "ants_subjects") }

// MindboggleDir is Out/mindboggled.
func (c PipelineConfig) MindboggleDir() string { return filepath.Join(c.Out, "mindboggled") }

// WorkflowDir holds per-node intermediate files, fingerprints and exports.
func (c PipelineConfig) WorkflowDir() string { return filepath.Join(c.Working, WorkflowName) }

// ANTsPrefix is the antsCorticalThickness output prefix of the subject.
func (c PipelineConfig) ANTsPrefix() string { return filepath.Join(c.ANTsDir(), c.ID, "ants") }

// LabelsCSV is the fixed path of the label geometry table.
func (c PipelineConfig) LabelsCSV() string {
	return filepath.Join(c.ANTsDir(), c.ID, "antslabels_geometry.csv")
}

// MaxParallel is the engine concurrency implied by the plugin.
func (c PipelineConfig) MaxParallel() int {
	if c.Plugin != PluginMultiProc {
		return 1
	}
	if c.PluginArgs.NProcs > 0 {
		return c.PluginArgs.NProcs
	}
	return runtime.NumCPU()
}
