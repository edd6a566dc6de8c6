package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// --- Constructors ---

// Configuration creates an error for an invalid configuration value. The
// message names field when it is set.
func Configuration(field, reason string) *AppError {
	details := make(map[string]any)
	msg := "invalid configuration: " + reason
	if field != "" {
		details["field"] = field
		msg = fmt.Sprintf("invalid configuration: %s: %s", field, reason)
	}
	return &AppError{Code: ErrCodeConfiguration, Message: msg, Details: details}
}

// MissingField creates an error for a missing required setting.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("missing required setting: %s", field),
		Details: map[string]any{"field": field},
	}
}

// Filesystem creates an error for a failed filesystem operation on path.
func Filesystem(op, path string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeFilesystem, Message: fmt.Sprintf("%s %s failed", op, path),
		Details: map[string]any{"op": op, "path": path}, Cause: cause,
	}
}

// ExternalProcess creates an error for an invoked tool that failed.
func ExternalProcess(tool string, exitCode int, cause error) *AppError {
	return &AppError{
		Code: ErrCodeExternalProcess, Message: fmt.Sprintf("%s exited with code %d", tool, exitCode),
		Details: map[string]any{"tool": tool, "exit_code": exitCode}, Cause: cause,
	}
}

// MissingInput creates an external process error for an input path that does
// not exist when a tool is about to be launched.
func MissingInput(tool, path string) *AppError {
	return &AppError{
		Code: ErrCodeExternalProcess, Message: fmt.Sprintf("%s input %s does not exist", tool, path),
		Details: map[string]any{"tool": tool, "missing_input": path},
	}
}

// GraphWiring creates an error for an invalid edge between two nodes.
func GraphWiring(from, to, reason string) *AppError {
	return &AppError{
		Code: ErrCodeGraphWiring, Message: fmt.Sprintf("cannot connect %s -> %s: %s", from, to, reason),
		Details: map[string]any{"from": from, "to": to},
	}
}

// Canceled creates an error for an interrupted run.
func Canceled(cause error) *AppError {
	return &AppError{
		Code: ErrCodeCanceled, Message: "run was canceled",
		Retryable: true, Cause: cause,
	}
}

// Internal creates an error for an unexpected internal failure.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "an unexpected error occurred",
		Cause: cause,
	}
}

// --- Inspection ---

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// ExitCode returns the process exit code for err. A nil error exits 0 and an
// error that is not an AppError exits 1.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if appErr, ok := AsAppError(err); ok {
		return ExitCodeFor(appErr.Code)
	}
	return ExitFailure
}
