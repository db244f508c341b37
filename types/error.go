package types

import "fmt"

// ErrorCode represents a unified error code across the system.
type ErrorCode string

// Workflow error codes
const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrForbidden        ErrorCode = "FORBIDDEN"
	ErrAuthFailure      ErrorCode = "AUTH_FAILURE"
	ErrCaptchaFailure   ErrorCode = "CAPTCHA_FAILURE"
	ErrLocationFailure  ErrorCode = "LOCATION_FAILURE"
	ErrFormFailure      ErrorCode = "FORM_FAILURE"
	ErrSubmitUnconfirm  ErrorCode = "SUBMIT_UNCONFIRMED"
	ErrModuleAccess     ErrorCode = "MODULE_ACCESS_DENIED"
	ErrRateLimited      ErrorCode = "RATE_LIMITED"
	ErrNetworkTransient ErrorCode = "NETWORK_TRANSIENT"
	ErrCancelled        ErrorCode = "CANCELLED"
	ErrInternalError    ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
// Messages must carry enough context to diagnose (selector attempted, field
// name, captcha mode) but never raw credentials or secrets.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
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

// Category maps an error code to the failure-category label used by the
// reporting layer.
func (e *Error) Category() string {
	switch e.Code {
	case ErrAuthFailure, ErrUnauthorized, ErrForbidden, ErrModuleAccess:
		return "auth"
	case ErrCaptchaFailure:
		return "captcha"
	case ErrLocationFailure:
		return "map"
	case ErrRateLimited, ErrNetworkTransient:
		return "network"
	case ErrFormFailure, ErrSubmitUnconfirm, ErrInvalidRequest:
		return "form"
	default:
		return "unknown"
	}
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

// CategoryOf returns the reporting category for any error value.
func CategoryOf(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Category()
	}
	return "unknown"
}
