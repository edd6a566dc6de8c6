// Package observability provides optional OpenTelemetry tracing and metrics.
//
// Nothing is exported unless an OTLP endpoint is configured. Setup wires both
// providers and returns a single shutdown function:
//
//	shutdown, err := observability.Setup(ctx, cfg, "mindboggle123", version.GetVersion())
//	defer shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, "mindboggle123.recon-all")
//	defer span.End()
//
//	metrics, err := observability.NewMetrics(observability.Meter("mindboggle123"))
//	metrics.RecordOperation(ctx, "mindboggle123", "recon-all", "completed", d)
package observability
