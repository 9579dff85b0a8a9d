// Package errors provides structured error types for deploy-commander.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode identifies specific error conditions
type ErrorCode string

const (
	ErrCodeValidation     ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeConflict       ErrorCode = "CONFLICT"
	ErrCodeParse          ErrorCode = "PARSE_ERROR"
	ErrCodeBackend        ErrorCode = "BACKEND_ERROR"
	ErrCodeVariableSource ErrorCode = "VARIABLE_SOURCE_ERROR"
	ErrCodeCommandFailed  ErrorCode = "COMMAND_FAILED"
	ErrCodeChainFailed    ErrorCode = "CHAIN_FAILED"
	ErrCodeOrchestration  ErrorCode = "ORCHESTRATION_FAILED"
)

// Error is the base error type for deploy-commander
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Details map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Wrap creates a new error wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
		Details: make(map[string]interface{}),
	}
}

// WithDetail adds a single detail to an error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ValidationError creates a validation error
func ValidationError(message string, details map[string]interface{}) *Error {
	return &Error{
		Code:    ErrCodeValidation,
		Message: message,
		Details: details,
	}
}

// NotFoundError creates a not found error
func NotFoundError(resourceType, name string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %q not found", resourceType, name),
		Details: map[string]interface{}{
			"resource_type": resourceType,
			"name":          name,
		},
	}
}

// ConflictError creates an error for a resource that already exists.
func ConflictError(resourceType, name string) *Error {
	return &Error{
		Code:    ErrCodeConflict,
		Message: fmt.Sprintf("%s %q already exists", resourceType, name),
		Details: map[string]interface{}{
			"resource_type": resourceType,
			"name":          name,
		},
	}
}

// ParseError creates a parse error
func ParseError(filePath string, err error) *Error {
	return &Error{
		Code:    ErrCodeParse,
		Message: fmt.Sprintf("failed to parse %s", filePath),
		Cause:   err,
		Details: map[string]interface{}{
			"file": filePath,
		},
	}
}

// BackendError creates a backend error
func BackendError(backend string, operation string, err error) *Error {
	return &Error{
		Code:    ErrCodeBackend,
		Message: fmt.Sprintf("backend %s failed during %s", backend, operation),
		Cause:   err,
		Details: map[string]interface{}{
			"backend":   backend,
			"operation": operation,
		},
	}
}

// VariableSourceError reports a variables source that could not be read or parsed.
// Callers recover from it by skipping the source.
func VariableSourceError(source string, err error) *Error {
	return &Error{
		Code:    ErrCodeVariableSource,
		Message: fmt.Sprintf("variables source %s is unusable", source),
		Cause:   err,
		Details: map[string]interface{}{
			"source": source,
		},
	}
}

// CommandFailed creates an error for a single command of a chain.
func CommandFailed(command string, message string) *Error {
	return &Error{
		Code:    ErrCodeCommandFailed,
		Message: fmt.Sprintf("command %s failed: %s", command, message),
		Details: map[string]interface{}{
			"command": command,
		},
	}
}

// ChainFailed creates an error for an event whose chain ended unsuccessfully.
func ChainFailed(deployment, event string, cause error) *Error {
	return &Error{
		Code:    ErrCodeChainFailed,
		Message: fmt.Sprintf("event %q of deployment %q failed", event, deployment),
		Cause:   cause,
		Details: map[string]interface{}{
			"deployment": deployment,
			"event":      event,
		},
	}
}

// OrchestrationFailed creates an error listing deployments that did not succeed.
func OrchestrationFailed(failed []string) *Error {
	return &Error{
		Code:    ErrCodeOrchestration,
		Message: fmt.Sprintf("%d deployment(s) failed: %s", len(failed), strings.Join(failed, ", ")),
		Details: map[string]interface{}{
			"failed": failed,
		},
	}
}

// Is checks if the error, or any error it wraps, matches the given code
func Is(err error, code ErrorCode) bool {
	var e *Error
	for err != nil {
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}
