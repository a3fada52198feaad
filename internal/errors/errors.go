// Package errors provides standardized error types for certglue.
//
// The errors package defines domain-specific error types that let the
// control loop tell recoverable renewal problems apart from fatal
// configuration problems without string matching.
//
// # Error Types
//
// GlueError is the primary error type, containing:
//   - Code: Categorizes the error (CONFIG, RENEWAL, ARTIFACT, etc.)
//   - Message: Human-readable error description
//   - Subject: The path, binary or PID involved (if applicable)
//   - Err: The underlying wrapped error (if any)
//
// # Sentinel Errors
//
// Common error scenarios have pre-defined sentinel errors:
//
//	errors.ErrConfigInvalid    // required setting missing or malformed
//	errors.ErrRenewalFailed    // certbot exited nonzero
//	errors.ErrArtifactMissing  // certbot exited zero but fullchain.pem is absent
//	errors.ErrBundleFailed     // combined.pem could not be written
//	errors.ErrLaunchFailed     // the proxy did not come up
//
// # Usage
//
//	return errors.Configuration("DOMAINS is required")
//	return errors.Wrap(errors.ErrCodeRenewal, "certbot exited with status 1", err)
//
// # Error Checking
//
// Use errors.Is for sentinel comparison (codes are compared):
//
//	if errors.Is(err, errors.ErrArtifactMissing) {
//	    // retry later
//	}
//
// Recoverable reports whether the control loop should retry instead of exiting.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors for programmatic handling.
type ErrorCode string

// Error codes for different error categories.
const (
	ErrCodeConfig     ErrorCode = "CONFIG"     // Configuration error
	ErrCodeRenewal    ErrorCode = "RENEWAL"    // Authority client failed
	ErrCodeArtifact   ErrorCode = "ARTIFACT"   // Expected certificate file missing
	ErrCodeBundle     ErrorCode = "BUNDLE"     // Combined file assembly failed
	ErrCodeLaunch     ErrorCode = "LAUNCH"     // Proxy launch failed
	ErrCodeDependency ErrorCode = "DEPENDENCY" // External binary missing
	ErrCodeInternal   ErrorCode = "INTERNAL"   // Internal/unexpected error
)

// GlueError represents a structured error with context about the operation.
type GlueError struct {
	Code    ErrorCode // Error category
	Message string    // Human-readable message
	Subject string    // Path, binary or PID (if applicable)
	Err     error     // Underlying error (if any)
}

// Error implements the error interface.
func (e *GlueError) Error() string {
	switch {
	case e.Subject != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Subject, e.Message, e.Err)
	case e.Subject != "":
		return fmt.Sprintf("%s: %s", e.Subject, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for error chain traversal.
func (e *GlueError) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error.
// Comparison is based on error code.
func (e *GlueError) Is(target error) bool {
	t, ok := target.(*GlueError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel errors for common error scenarios.
// Use these with errors.Is() for error checking.
var (
	// ErrConfigInvalid indicates a required setting is absent or malformed.
	ErrConfigInvalid = &GlueError{Code: ErrCodeConfig, Message: "invalid configuration"}

	// ErrRenewalFailed indicates the authority client exited nonzero.
	ErrRenewalFailed = &GlueError{Code: ErrCodeRenewal, Message: "certificate renewal failed"}

	// ErrArtifactMissing indicates the authority client succeeded but left no chain file.
	ErrArtifactMissing = &GlueError{Code: ErrCodeArtifact, Message: "certificate chain missing"}

	// ErrBundleFailed indicates the combined file could not be assembled.
	ErrBundleFailed = &GlueError{Code: ErrCodeBundle, Message: "bundle assembly failed"}

	// ErrLaunchFailed indicates the proxy process could not be started or died at once.
	ErrLaunchFailed = &GlueError{Code: ErrCodeLaunch, Message: "proxy launch failed"}

	// ErrCertbotNotInstalled indicates certbot is not on PATH.
	ErrCertbotNotInstalled = &GlueError{Code: ErrCodeDependency, Message: "certbot not installed"}

	// ErrProxyNotInstalled indicates the proxy binary is not on PATH.
	ErrProxyNotInstalled = &GlueError{Code: ErrCodeDependency, Message: "proxy binary not installed"}
)

// Configuration creates a configuration error with a custom message.
func Configuration(msg string) error {
	return &GlueError{
		Code:    ErrCodeConfig,
		Message: msg,
	}
}

// Wrap creates an error with the specified code, message, and underlying error.
func Wrap(code ErrorCode, msg string, err error) error {
	return &GlueError{
		Code:    code,
		Message: msg,
		Err:     err,
	}
}

// WrapSubject creates an error with subject context and underlying error.
func WrapSubject(code ErrorCode, subject, msg string, err error) error {
	return &GlueError{
		Code:    code,
		Message: msg,
		Subject: subject,
		Err:     err,
	}
}

// CodeOf returns the code of the first GlueError in err's chain,
// or ErrCodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	var ge *GlueError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ErrCodeInternal
}

// Recoverable reports whether err is one the control loop retries on.
func Recoverable(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case ErrCodeRenewal, ErrCodeArtifact, ErrCodeBundle, ErrCodeLaunch:
		return true
	}
	return false
}

// Is reports whether any error in err's chain matches target.
// This is a re-export of errors.Is for convenience.
var Is = errors.Is

// As finds the first error in err's chain that matches target.
// This is a re-export of errors.As for convenience.
var As = errors.As
