// Package logger provides structured logging using zerolog.
//
// It supports console and JSON output, level configuration, and
// component-scoped loggers with structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "console"
//
// # Usage
//
//	log := logger.Get("engine")
//	log.Info("node completed", logger.Fields("node", "recon-all"))
package logger
