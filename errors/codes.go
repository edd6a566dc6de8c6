package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Configuration errors
const (
	// ErrCodeConfiguration indicates an invalid flag or config value.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	// ErrCodeMissingField indicates a required setting is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Runtime errors
const (
	// ErrCodeFilesystem indicates a directory or file could not be created or read.
	ErrCodeFilesystem ErrorCode = "FILESYSTEM_ERROR"
	// ErrCodeExternalProcess indicates an invoked tool failed or could not start.
	ErrCodeExternalProcess ErrorCode = "EXTERNAL_PROCESS_ERROR"
	// ErrCodeGraphWiring indicates an invalid edge was declared while building a graph.
	ErrCodeGraphWiring ErrorCode = "GRAPH_WIRING_ERROR"
	// ErrCodeCanceled indicates the run was interrupted.
	ErrCodeCanceled ErrorCode = "CANCELED"
	// ErrCodeInternal indicates an unexpected internal failure.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Exit codes reported by the command line.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

var exitCodes = map[ErrorCode]int{
	ErrCodeConfiguration: ExitUsage,
	ErrCodeMissingField:  ExitUsage,
}

// ExitCodeFor returns the process exit code for an error code.
func ExitCodeFor(code ErrorCode) int {
	if c, ok := exitCodes[code]; ok {
		return c
	}
	return ExitFailure
}

// IsRetryableCode reports whether an error code may be retried. Nothing in the
// pipeline is retried locally, so only cancellation qualifies as transient.
func IsRetryableCode(code ErrorCode) bool {
	return code == ErrCodeCanceled
}
