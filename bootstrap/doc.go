// Package bootstrap runs a finite command-line task with a uniform lifecycle.
//
// It applies and validates typed configuration, initialises the logger and
// optional telemetry export, runs start/ready/stop hooks, cancels the task on
// SIGINT or SIGTERM, and prints a run summary when the task ends.
//
// # Quick Start
//
//	app, err := bootstrap.NewApp(&cfg)
//	if err != nil {
//	    return err
//	}
//	return app.RunTask(ctx, func(ctx context.Context) error {
//	    return driver.Run(ctx)
//	})
package bootstrap
