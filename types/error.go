package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the module.
type ErrorCode string

// Transport error codes. Collaborator calls classify every failure into one
// of these; the orchestrator treats all three uniformly as "the call failed".
const (
	ErrConnection ErrorCode = "CONNECTION_ERROR"
	ErrProtocol   ErrorCode = "PROTOCOL_ERROR"
	ErrProcessing ErrorCode = "PROCESSING_ERROR"
)

// Flow error codes
const (
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrTurnInProgress ErrorCode = "TURN_IN_PROGRESS"
	ErrNotReady       ErrorCode = "NOT_READY"
	ErrInvalidInput   ErrorCode = "INVALID_INPUT"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Operation  string    `json:"operation,omitempty"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := string(e.Code)
	if e.Operation != "" {
		prefix += " " + e.Operation
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", prefix, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithOperation names the collaborator operation that failed.
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// ConnectionError wraps a failure to reach a collaborator.
func ConnectionError(op string, cause error) *Error {
	return NewError(ErrConnection, "connection failed").WithOperation(op).WithCause(cause).WithRetryable(true)
}

// ProtocolError reports a non-success status from a collaborator.
func ProtocolError(op string, status int, message string) *Error {
	return NewError(ErrProtocol, message).WithOperation(op).WithHTTPStatus(status).WithRetryable(status >= 500)
}

// ProcessingError reports a response that could not be processed.
func ProcessingError(op string, cause error) *Error {
	return NewError(ErrProcessing, "processing failed").WithOperation(op).WithCause(cause)
}

// NotFoundError reports missing reference data.
func NotFoundError(kind, identifier string) *Error {
	return NewError(ErrNotFound, fmt.Sprintf("%s %q not found", kind, identifier))
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// IsTransport reports whether err is a collaborator transport failure.
func IsTransport(err error) bool {
	switch GetErrorCode(err) {
	case ErrConnection, ErrProtocol, ErrProcessing:
		return true
	}
	return false
}
