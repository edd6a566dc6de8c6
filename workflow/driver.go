package workflow

import (
	"context"

	"github.com/spf13/afero"

	"github.com/kbukum/mindboggle123/ants"
	"github.com/kbukum/mindboggle123/dag"
	"github.com/kbukum/mindboggle123/logger"
	"github.com/kbukum/mindboggle123/observability"
)

// Driver provisions directories, builds the graph and executes it.
type Driver struct {
	Config PipelineConfig
	// Fs defaults to the OS filesystem. It carries directory provisioning,
	// atlas discovery, node fingerprints, crash reports and the exported
	// graph. The external tools always see the OS filesystem.
	Fs     afero.Fs
	Logger *logger.Logger
	// Metrics, when set, records one operation per node.
	Metrics *observability.Metrics
	// Hooks observe every finished node after the crash reporter.
	Hooks []dag.Hook
	// Runner defaults to process.Run.
	Runner Runner

	crash *dag.CrashReporter
}

// CrashReports returns the crash reports written by the last Run.
func (d *Driver) CrashReports() []string {
	if d.crash == nil {
		return nil
	}
	return d.crash.Reports()
}

func (d *Driver) fs() afero.Fs {
	if d.Fs == nil {
		return afero.NewOsFs()
	}
	return d.Fs
}

func (d *Driver) log() *logger.Logger {
	if d.Logger == nil {
		return logger.Get("workflow")
	}
	return d.Logger
}

// Prepare creates the output directories and returns the decorated graph.
// Nothing is executed.
func (d *Driver) Prepare() (*dag.Graph, error) {
	cfg := d.Config
	log := d.log().WithFields(logger.Fields(logger.FieldSubject, cfg.ID))

	if cfg.SkipFreeSurfer && cfg.SkipANTs {
		log.Warn("Both recon-all and antsCorticalThickness are skipped; using existing outputs of both")
	}

	if err := Provision(d.fs(), cfg); err != nil {
		return nil, err
	}

	var atlases []ants.Atlas
	if cfg.ANTs.Seg == SegFusion {
		found, err := ants.Template{Dir: cfg.Template}.DiscoverAtlases(d.fs())
		if err != nil {
			return nil, err
		}
		atlases = found
	}
	labeling, err := SelectLabeling(cfg, atlases)
	if err != nil {
		return nil, err
	}

	opts := []BuilderOption{WithFs(d.fs()), WithLogger(log)}
	if d.Runner != nil {
		opts = append(opts, WithRunner(d.Runner))
	}
	g, err := Build(cfg, labeling, opts...)
	if err != nil {
		return nil, err
	}

	dag.Cacheables(g, &dag.Cache{Fs: d.fs(), Dir: cfg.WorkflowDir(), Method: cfg.HashMethod})
	g.Decorate(func(n dag.Node) dag.Node {
		if d.Metrics != nil {
			n = dag.WithMetrics(n, d.Metrics, WorkflowName)
		}
		n = dag.WithTracing(n, WorkflowName)
		return dag.WithLogging(n, log)
	})

	log.Info("Workflow prepared", logger.Fields(
		"labeling", string(labeling.Mode()),
		"nodes", len(g.Nodes),
		"max_parallel", cfg.MaxParallel(),
	))
	return g, nil
}

// Run executes the pipeline. graph.dot and workflow.yaml are written to the
// workflow directory before and after execution. The first node failure is
// returned; outputs of nodes that finished stay on disk.
func (d *Driver) Run(ctx context.Context) (*dag.Result, error) {
	cfg := d.Config
	g, err := d.Prepare()
	if err != nil {
		return nil, err
	}
	log := d.log()
	if err := dag.Export(d.fs(), cfg.WorkflowDir(), g, nil); err != nil {
		log.Warn("Failed to export workflow", logger.MergeWithError(nil, err))
	}

	d.crash = dag.NewCrashReporter(d.fs(), cfg.CrashdumpDir)
	engine := &dag.Engine{
		MaxParallel:      cfg.MaxParallel(),
		StopOnFirstCrash: cfg.PluginArgs.StopOnFirstCrash,
		Hooks:            append([]dag.Hook{d.crash.Hook()}, d.Hooks...),
	}

	result, runErr := engine.ExecuteBatch(ctx, g, dag.NewState())
	if result != nil {
		if err := dag.Export(d.fs(), cfg.WorkflowDir(), g, result); err != nil {
			log.Warn("Failed to export workflow", logger.MergeWithError(nil, err))
		}
	}
	if runErr != nil {
		return result, runErr
	}
	return result, result.Err()
}
