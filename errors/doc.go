// Package errors provides the structured error type used across the pipeline.
// Every failure that reaches the command line carries a machine-readable code
// that classifies it as a configuration, filesystem, external process or graph
// wiring problem, and maps to a process exit code.
package errors
