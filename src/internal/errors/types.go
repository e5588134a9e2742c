package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// LSPError represents a standard LSP error with code and optional data
type LSPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *LSPError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("LSP error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("LSP error %d: %s", e.Code, e.Message)
}

// ValidationError represents parameter validation errors
type ValidationError struct {
	Parameter string `json:"parameter"`
	Message   string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for parameter '%s': %s", e.Parameter, e.Message)
}

// TimeoutError represents operation timeout errors
type TimeoutError struct {
	Operation string        `json:"operation"`
	Timeout   time.Duration `json:"timeout,omitempty"`
	Cause     error         `json:"cause,omitempty"`
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout error for %s operation (timeout: %v)", e.Operation, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// ProcessError represents LSP server process errors
type ProcessError struct {
	Command string `json:"command"`
	Cause   error  `json:"cause,omitempty"`
	Type    string `json:"type"` // "start", "stop", "communication"
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("process error (%s): %s - %v", e.Type, e.Command, e.Cause)
}

func (e *ProcessError) Unwrap() error {
	return e.Cause
}

// StateError is returned when an operation is rejected because of the
// session or document lifecycle state. It never reaches the transport.
type StateError struct {
	Code      int    `json:"code"`
	Operation string `json:"operation"`
	State     string `json:"state,omitempty"`
	Message   string `json:"message"`
}

func (e *StateError) Error() string {
	if e.State != "" {
		return fmt.Sprintf("%s rejected in state %s: %s", e.Operation, e.State, e.Message)
	}
	return fmt.Sprintf("%s rejected: %s", e.Operation, e.Message)
}

// Is matches state errors by code so sentinels work with errors.Is
// regardless of the operation/state annotations.
func (e *StateError) Is(target error) bool {
	t, ok := target.(*StateError)
	return ok && t.Code == e.Code
}

// RemoteError represents a failed command over the remote tunnel
type RemoteError struct {
	Host     string `json:"host"`
	Command  string `json:"command"`
	ExitCode int    `json:"exit_code"`
	Stderr   string `json:"stderr,omitempty"`
	Cause    error  `json:"cause,omitempty"`
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("remote command on %s failed (exit %d): %s", e.Host, e.ExitCode, e.Command)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (%v)", e.Cause)
	}
	return msg
}

func (e *RemoteError) Unwrap() error {
	return e.Cause
}

// Error constructors

// NewLSPError creates a new LSP error with specified code, message, and optional data
func NewLSPError(code int, message string, data interface{}) *LSPError {
	return &LSPError{Code: code, Message: message, Data: data}
}

// NewValidationError creates a new validation error for the specified parameter
func NewValidationError(parameter, message string) *ValidationError {
	return &ValidationError{Parameter: parameter, Message: message}
}

// NewTimeoutError creates a new timeout error for the specified operation
func NewTimeoutError(operation string, timeout time.Duration, cause error) *TimeoutError {
	return &TimeoutError{Operation: operation, Timeout: timeout, Cause: cause}
}

// NewProcessError creates a new process error for LSP server operations
func NewProcessError(command, errorType string, cause error) *ProcessError {
	return &ProcessError{Command: command, Type: errorType, Cause: cause}
}

// NewStateError creates a lifecycle rejection error
func NewStateError(code int, message string) *StateError {
	return &StateError{Code: code, Message: message}
}

// WithOperation returns a copy of a state error annotated with the rejected
// operation and the state it was attempted in.
func (e *StateError) WithOperation(operation, state string) *StateError {
	c := *e
	c.Operation = operation
	c.State = state
	return &c
}

// NewRemoteError creates a remote command failure
func NewRemoteError(host, command string, exitCode int, stderr string, cause error) *RemoteError {
	return &RemoteError{Host: host, Command: command, ExitCode: exitCode, Stderr: stderr, Cause: cause}
}

// WrapWithContext adds an operation prefix to an error
func WrapWithContext(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", operation, err)
}

// Error classification functions

// IsTimeoutError checks if the error is a timeout error
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	var te *TimeoutError
	if stderrors.As(err, &te) {
		return true
	}
	return stderrors.Is(err, context.DeadlineExceeded)
}

// IsProcessError checks if the error is a process error
func IsProcessError(err error) bool {
	var pe *ProcessError
	return err != nil && stderrors.As(err, &pe)
}

// IsStateError checks if the error is a lifecycle rejection
func IsStateError(err error) bool {
	var se *StateError
	return err != nil && stderrors.As(err, &se)
}

// IsRemoteError checks if the error came from the remote tunnel
func IsRemoteError(err error) bool {
	var re *RemoteError
	return err != nil && stderrors.As(err, &re)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return err != nil && stderrors.As(err, &ve)
}

// ErrorCode returns the numeric code for a classified error, 0 otherwise
func ErrorCode(err error) int {
	if err == nil {
		return 0
	}
	var (
		le *LSPError
		se *StateError
		te *TimeoutError
		pe *ProcessError
		re *RemoteError
		ve *ValidationError
	)
	switch {
	case stderrors.As(err, &le):
		return le.Code
	case stderrors.As(err, &se):
		return se.Code
	case stderrors.As(err, &te):
		switch te.Operation {
		case "initialize":
			return InitializationTimeout
		case "shutdown":
			return ShutdownTimeout
		}
		return OperationTimeout
	case stderrors.As(err, &re):
		return RemoteCommandFailed
	case stderrors.As(err, &pe):
		switch pe.Type {
		case "start":
			return ProcessStartFailure
		case "stop":
			return ProcessStopFailure
		}
		return CommunicationError
	case stderrors.As(err, &ve):
		switch ve.Parameter {
		case "uri":
			return InvalidURI
		case "position":
			return InvalidPosition
		}
		return InvalidParams
	case stderrors.Is(err, context.DeadlineExceeded):
		return OperationTimeout
	}
	return 0
}

// GetErrorCategory returns a category string for error classification
func GetErrorCategory(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsTimeoutError(err):
		return "timeout"
	case IsStateError(err):
		return "state"
	case IsRemoteError(err):
		return "remote"
	case IsProcessError(err):
		return "process"
	case IsValidationError(err):
		return "validation"
	default:
		return "general"
	}
}
