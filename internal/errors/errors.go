// Package errors provides standardized error types for the zmssl CLI tool.
//
// The errors package defines the error taxonomy used across the certificate
// pipeline. Every failure falls into one of four categories:
//
//   - Configuration: invalid or conflicting flags, detected before any
//     external call.
//   - Precondition: expected state is missing (certificate files, platform
//     installation, free execution lock). No side effects beyond the check.
//   - Tool: an external tool exited nonzero. Carries the diagnostic log
//     path so the operator can inspect raw output.
//   - Skip: not a failure. Renewal was evaluated and found not due, or the
//     acquisition tool reported the certificate is not yet eligible.
//
// # Usage
//
// Creating errors:
//
//	return errors.Configuration("cannot combine --name with --cert")
//	return errors.Precondition("no certificate found at %s", path)
//	return errors.ToolFailure("certbot", logPath, err)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrAlreadyRunning) { ... }
//
//	var perr *errors.PipelineError
//	if errors.As(err, &perr) {
//	    fmt.Println(perr.LogPath)
//	}
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors for programmatic handling.
type ErrorCode string

// Error codes for the pipeline error taxonomy.
const (
	ErrCodeConfiguration ErrorCode = "CONFIGURATION" // Invalid or conflicting options
	ErrCodePrecondition  ErrorCode = "PRECONDITION"  // Expected state missing
	ErrCodeTool          ErrorCode = "TOOL"          // External tool failure
	ErrCodeSkip          ErrorCode = "SKIP"          // Nothing to do, not a failure
	ErrCodeInternal      ErrorCode = "INTERNAL"      // Internal/unexpected error
)

// PipelineError represents a structured error with context about the
// failed operation.
type PipelineError struct {
	Code    ErrorCode // Error category
	Message string    // Human-readable message
	Tool    string    // External tool name (if applicable)
	LogPath string    // Diagnostic log path (if applicable)
	Err     error     // Underlying error (if any)
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	msg := e.Message
	if e.Tool != "" {
		msg = fmt.Sprintf("%s: %s", e.Tool, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.LogPath != "" {
		msg = fmt.Sprintf("%s (see %s)", msg, e.LogPath)
	}
	return msg
}

// Unwrap returns the underlying error for error chain traversal.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error.
// Comparison is based on error code and, when set on the target, message.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	if e.Code != t.Code {
		return false
	}
	return t.Message == "" || e.Message == t.Message
}

// Sentinel errors for common scenarios.
// Use these with errors.Is() for error checking.
var (
	// ErrAlreadyRunning indicates another zmssl run holds the execution lock.
	ErrAlreadyRunning = &PipelineError{Code: ErrCodePrecondition, Message: "another zmssl run is in progress"}

	// ErrPlatformNotFound indicates no supported platform installation was detected.
	ErrPlatformNotFound = &PipelineError{Code: ErrCodePrecondition, Message: "platform installation not found"}

	// ErrMissingCertificate indicates the expected certificate material does not exist yet.
	ErrMissingCertificate = &PipelineError{Code: ErrCodePrecondition, Message: "certificate file missing"}

	// ErrNotWithinWindow indicates the certificate is not yet inside the renewal window.
	ErrNotWithinWindow = &PipelineError{Code: ErrCodeSkip, Message: "certificate not yet within renewal window"}

	// ErrNotYetDue indicates the acquisition tool itself declined to renew.
	ErrNotYetDue = &PipelineError{Code: ErrCodeSkip, Message: "acquisition tool reports certificate not yet due for renewal"}
)

// Configuration creates a configuration error with a formatted message.
func Configuration(format string, args ...interface{}) error {
	return &PipelineError{
		Code:    ErrCodeConfiguration,
		Message: fmt.Sprintf(format, args...),
	}
}

// Precondition creates a precondition error with a formatted message.
func Precondition(format string, args ...interface{}) error {
	return &PipelineError{
		Code:    ErrCodePrecondition,
		Message: fmt.Sprintf(format, args...),
	}
}

// MissingCertificate creates a precondition error that matches the
// ErrMissingCertificate sentinel via errors.Is.
func MissingCertificate(format string, args ...interface{}) error {
	return &PipelineError{
		Code:    ErrCodePrecondition,
		Message: fmt.Sprintf(format, args...),
		Err:     ErrMissingCertificate,
	}
}

// ToolFailure creates an error for a failed external tool invocation.
// logPath may be empty when no diagnostic log was written.
func ToolFailure(tool, logPath string, err error) error {
	return &PipelineError{
		Code:    ErrCodeTool,
		Message: "command failed",
		Tool:    tool,
		LogPath: logPath,
		Err:     err,
	}
}

// Wrap creates an error with the specified code, message, and underlying error.
func Wrap(code ErrorCode, msg string, err error) error {
	return &PipelineError{
		Code:    code,
		Message: msg,
		Err:     err,
	}
}

// IsSkip reports whether err represents a "nothing to do" outcome rather
// than a failure.
func IsSkip(err error) bool {
	var perr *PipelineError
	if errors.As(err, &perr) {
		return perr.Code == ErrCodeSkip
	}
	return false
}

// Is reports whether any error in err's chain matches target.
// This is a re-export of errors.Is for convenience.
var Is = errors.Is

// As finds the first error in err's chain that matches target.
// This is a re-export of errors.As for convenience.
var As = errors.As
