package models

import "fmt"

// ErrorCode is a string type for consistent error codes.
type ErrorCode string

// Predefined error codes for the client-side error taxonomy.
const (
	// Generic
	ErrorCodeNetworkFailure ErrorCode = "network_failure"
	ErrorCodeInternalError  ErrorCode = "internal_error"
	ErrorCodeBadRequest     ErrorCode = "bad_request"

	// Authentication & Authorization
	ErrorCodeUnauthorized ErrorCode = "unauthorized"
	ErrorCodeForbidden    ErrorCode = "forbidden"
	ErrorCodeTokenExpired ErrorCode = "token_expired"

	// Resource
	ErrorCodeNotFound          ErrorCode = "not_found"
	ErrorCodeDuplicateResource ErrorCode = "duplicate_resource"

	// Validation
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
)

// APIError carries a machine code, a human-readable message, and the HTTP
// status that produced it.
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
	StatusCode int       `json:"-"`
}

// Error makes APIError implement the error interface.
func (e APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// NewAPIError is a constructor for APIError.
func NewAPIError(code ErrorCode, message string, details any, statusCode int) APIError {
	return APIError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: statusCode,
	}
}
