// Package errors provides structured error types for shotframe.
//
// Errors carry a machine-readable [Code] so the pipeline can tell fatal
// template/configuration mismatches apart from per-page capture failures and
// from warnings that are recovered locally.
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures (caller errors)
//   - TEMPLATE_*: Template/asset mismatches
//   - *_FAILED: Failures of an external collaborator (capture, render)
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeTemplateIntegrity, "placeholder %q not found", id)
//	if errors.Is(err, errors.ErrCodeTemplateIntegrity) {
//	    // template and configuration disagree
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeRender, origErr, "rasterize %s", name)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidPreset Code = "INVALID_PRESET"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidColor  Code = "INVALID_COLOR"

	// Template errors
	ErrCodeTemplateIntegrity Code = "TEMPLATE_INTEGRITY"
	ErrCodeTemplateParse     Code = "TEMPLATE_PARSE"

	// Resource errors
	ErrCodeFileNotFound      Code = "FILE_NOT_FOUND"
	ErrCodeUnsupportedFormat Code = "UNSUPPORTED_FORMAT"

	// Collaborator errors
	ErrCodeCapture Code = "CAPTURE_FAILED"
	ErrCodeRender  Code = "RENDER_FAILED"
	ErrCodeNetwork Code = "NETWORK_ERROR"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// Only the outermost *Error in the chain is inspected.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Has reports whether any *Error in the chain of err carries code.
func Has(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsFatal reports whether err indicates a configuration or template mismatch
// that retrying the same page cannot fix.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case ErrCodeTemplateIntegrity, ErrCodeInvalidPreset, ErrCodeInvalidConfig:
		return true
	}
	return false
}
