package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/mindboggle123/logger"
	"github.com/kbukum/mindboggle123/observability"
)

// App represents a command-line application with uniform lifecycle management.
// The type parameter C is the config type, which must satisfy the Config interface.
// Any struct embedding config.ServiceConfig automatically satisfies Config.
//
// Example:
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*AppConfig]) error {
//	    // a.Cfg is *AppConfig, fully typed
//	    return nil
//	})
//	app.RunTask(ctx, task)
type App[C Config] struct {
	Name    string
	Version string
	Cfg     C
	Logger  *logger.Logger
	Summary *Summary

	gracefulTimeout time.Duration
	onConfigure     []func(ctx context.Context, app *App[C]) error
	shutdownTel     observability.ShutdownFunc

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// NewApp creates a new application instance from a typed config.
// It applies defaults, validates the config, and initializes the logger.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	base := cfg.GetServiceConfig()

	app := &App[C]{
		Name:            base.Name,
		Version:         base.Version,
		Cfg:             cfg,
		gracefulTimeout: 15 * time.Second,
	}

	o := resolveOptions(opts)
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}

	// Logger: use custom if provided, otherwise init from config.
	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(base.Logging)
		app.Logger = logger.GetGlobalLogger()
	}

	app.Summary = NewSummary(base.Name, base.Version)
	if o.summaryOut != nil {
		app.Summary.out = o.summaryOut
	}
	return app, nil
}

// OnConfigure registers a callback to run during the configure phase.
// Use this to build the work the task will run once telemetry is up.
func (a *App[C]) OnConfigure(fn func(ctx context.Context, app *App[C]) error) {
	a.onConfigure = append(a.onConfigure, fn)
}

// RunTask executes a finite task with the full bootstrap lifecycle.
// It runs the task function and shuts down when the task completes or the
// context is canceled (e.g., via SIGINT/SIGTERM).
//
// Example:
//
//	app, _ := bootstrap.NewApp(&cfg)
//	app.RunTask(ctx, func(ctx context.Context) error {
//	    return processData(ctx)
//	})
func (a *App[C]) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		_ = a.stop()
		return err
	}

	// Set up signal-based cancellation for the task
	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			a.Logger.Warn("Received signal, canceling task", logger.Fields(
				"signal", sig.String(),
			))
			cancel()
		case <-taskCtx.Done():
		}
	}()

	start := time.Now()
	taskErr := task(taskCtx)
	a.Summary.SetRunDuration(time.Since(start))
	a.Summary.DisplayResult(taskErr)

	if stopErr := a.stop(); stopErr != nil && taskErr == nil {
		return stopErr
	}
	return taskErr
}

// startup performs the initialization sequence that precedes the task.
func (a *App[C]) startup(ctx context.Context) error {
	start := time.Now()

	a.Logger.Info("Starting application", logger.Fields(
		"name", a.Name,
		"version", a.Version,
	))

	// Phase 1: Initialize telemetry export
	if err := a.initialize(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}

	// Phase 2: Configure
	if err := a.configure(ctx); err != nil {
		return err
	}

	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady hook failed: %w", err)
	}

	a.Summary.SetStartupDuration(time.Since(start))
	a.Summary.DisplayStartup()
	return nil
}

// initialize sets up tracing and metrics export (Phase 1).
func (a *App[C]) initialize(ctx context.Context) error {
	base := a.Cfg.GetServiceConfig()
	shutdown, err := observability.Setup(ctx, base.Observability, a.Name, a.Version)
	if err != nil {
		return err
	}
	a.shutdownTel = shutdown
	if base.Observability.Enabled() {
		a.Summary.TrackSetting("telemetry", base.Observability.Endpoint)
	}
	return nil
}

// configure runs registered configuration callbacks (Phase 2). Their errors
// are returned unwrapped so error codes reach the caller intact.
func (a *App[C]) configure(ctx context.Context) error {
	if len(a.onConfigure) == 0 {
		return nil
	}

	a.Logger.Debug("Phase 2: Running configuration callbacks", logger.Fields(
		"count", len(a.onConfigure),
	))

	for _, fn := range a.onConfigure {
		if err := fn(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// stop runs OnStop hooks and flushes telemetry within the graceful timeout.
func (a *App[C]) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var shutdownErr error

	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("OnStop hook error", logger.Fields(
			logger.FieldError, err.Error(),
		))
		shutdownErr = err
	}

	if a.shutdownTel != nil {
		if err := a.shutdownTel(ctx); err != nil {
			a.Logger.Error("Telemetry shutdown error", logger.Fields(
				logger.FieldError, err.Error(),
			))
			if shutdownErr == nil {
				shutdownErr = err
			}
		}
		a.shutdownTel = nil
	}

	a.Logger.Debug("Application shutdown complete")
	return shutdownErr
}
