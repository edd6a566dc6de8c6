// Command mindboggle123 runs the full Mindboggle pipeline on one subject:
// FreeSurfer recon-all and ANTs cortical thickness, atlas labeling of the
// ANTs segmentation, then mindboggle on the combined outputs.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kbukum/mindboggle123/bootstrap"
	"github.com/kbukum/mindboggle123/dag"
	"github.com/kbukum/mindboggle123/errors"
	"github.com/kbukum/mindboggle123/logger"
	"github.com/kbukum/mindboggle123/observability"
	"github.com/kbukum/mindboggle123/version"
	"github.com/kbukum/mindboggle123/workflow"
)

// shutdownTimeout bounds the stop hooks and the telemetry flush.
const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command and returns its exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, shouldExit, err := parseArgs(args, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", serviceName, err)
		return errors.ExitCode(err)
	}
	if shouldExit {
		return errors.ExitOK
	}

	app, err := bootstrap.NewApp(cfg,
		bootstrap.WithSummaryOutput(stderr),
		bootstrap.WithGracefulTimeout(shutdownTimeout),
	)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", serviceName, err)
		return errors.ExitCode(err)
	}

	var driver *workflow.Driver
	app.OnStart(func(context.Context) error {
		// Crash report warnings from the engine carry the subject.
		logger.Register("dag", app.Logger.WithComponent("dag").WithFields(logger.Fields(logger.FieldSubject, cfg.ID)))
		return nil
	})
	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*AppConfig]) error {
		d, err := newDriver(a)
		if err != nil {
			return err
		}
		driver = d
		return nil
	})
	app.OnReady(func(context.Context) error {
		if info := version.GetVersionInfo(); !info.IsRelease() {
			app.Logger.Debug("Running a development build", logger.Fields("version", info.Version, "commit", info.GitCommit))
		}
		return nil
	})
	app.OnStop(func(context.Context) error {
		for _, report := range reportsOf(driver) {
			app.Logger.Error("Crash report written", logger.Fields(logger.FieldSubject, cfg.ID, logger.FieldPath, report))
		}
		return nil
	})

	err = app.RunTask(ctx, func(ctx context.Context) error {
		_, err := driver.Run(ctx)
		return err
	})
	if err != nil {
		fields := logger.Fields(logger.FieldSubject, cfg.ID)
		if appErr, ok := errors.AsAppError(err); ok {
			fields["code"] = string(appErr.Code)
			for k, v := range appErr.Details {
				fields[k] = v
			}
		}
		app.Logger.WithError(err).Error("Workflow failed", fields)
	}
	return errors.ExitCode(err)
}

func reportsOf(d *workflow.Driver) []string {
	if d == nil {
		return nil
	}
	return d.CrashReports()
}

// newDriver wires the resolved pipeline to the app's logger, metrics and run
// summary.
func newDriver(a *bootstrap.App[*AppConfig]) (*workflow.Driver, error) {
	p := a.Cfg.Pipeline()

	metrics, err := observability.NewMetrics(observability.Meter(serviceName))
	if err != nil {
		return nil, errors.Internal(err)
	}

	a.Summary.TrackSetting("subject", p.ID)
	a.Summary.TrackSetting("image", p.Image)
	a.Summary.TrackSetting("out", p.Out)
	a.Summary.TrackSetting("labeling", string(p.ANTs.Seg))
	a.Summary.TrackSetting("plugin", fmt.Sprintf("%s (max %d)", p.Plugin, p.MaxParallel()))
	if skipped := skippedStages(p); skipped != "" {
		a.Summary.TrackSetting("skipped", skipped)
	}

	summary := a.Summary
	track := func(_ context.Context, nr dag.NodeResult) {
		detail := nr.Reason
		if nr.Error != nil {
			detail = nr.Error.Error()
		}
		summary.TrackStep(nr.Name, string(nr.Status), nr.Duration, detail)
	}

	return &workflow.Driver{
		Config:  p,
		Logger:  a.Logger.WithComponent("workflow"),
		Metrics: metrics,
		Hooks:   []dag.Hook{track},
	}, nil
}

func skippedStages(p workflow.PipelineConfig) string {
	var stages []string
	if p.SkipFreeSurfer {
		stages = append(stages, "recon-all")
	}
	if p.SkipANTs {
		stages = append(stages, "antsCorticalThickness")
	}
	return strings.Join(stages, ", ")
}
