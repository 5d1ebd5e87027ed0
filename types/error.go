package types

import "fmt"

// ErrorCode represents a unified error code across the module.
type ErrorCode string

// Contract and validation error codes
const (
	ErrContractViolation ErrorCode = "CONTRACT_VIOLATION"
	ErrValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"
)

// Backend error codes
const (
	ErrBackendError       ErrorCode = "BACKEND_ERROR"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrUpstreamTimeout    ErrorCode = "UPSTREAM_TIMEOUT"
	ErrModelOverloaded    ErrorCode = "MODEL_OVERLOADED"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Runner and workflow error codes
const (
	ErrNoResult           ErrorCode = "NO_RESULT"
	ErrIterationsExceeded ErrorCode = "ITERATIONS_EXCEEDED"
	ErrDomainFailure      ErrorCode = "DOMAIN_FAILURE"
	ErrCancelled          ErrorCode = "CANCELLED"
	ErrToolValidation     ErrorCode = "TOOL_VALIDATION"
	ErrToolTimeout        ErrorCode = "TOOL_TIMEOUT"
	ErrSandboxEscape      ErrorCode = "SANDBOX_ESCAPE"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
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

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// IsContractViolation reports whether err carries the CONTRACT_VIOLATION code.
func IsContractViolation(err error) bool {
	return GetErrorCode(err) == ErrContractViolation
}
