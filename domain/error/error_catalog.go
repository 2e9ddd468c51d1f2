package error

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

// Error codes, grouped by the HTTP status they map to.
const (
	// Authentication Errors (1xxx)
	ErrCodeInvalidCredentials ErrorCode = "AUTH_1001"
	ErrCodeUserNotFound       ErrorCode = "AUTH_1002"
	ErrCodeSignatureInvalid   ErrorCode = "AUTH_1003"
	ErrCodeTokenExpired       ErrorCode = "AUTH_1004"
	ErrCodeSessionTooOld      ErrorCode = "AUTH_1005"

	// Validation Errors (2xxx)
	ErrCodeMissingFields  ErrorCode = "VALID_2001"
	ErrCodeInvalidRequest ErrorCode = "VALID_2002"
	ErrCodeInvalidRole    ErrorCode = "VALID_2003"

	// Conflict Errors (3xxx)
	ErrCodeDuplicateEmail ErrorCode = "CONFLICT_3001"

	// Authorization Errors (4xxx)
	ErrCodeRoleForbidden ErrorCode = "FORBIDDEN_4001"

	// Lookup Errors (5xxx)
	ErrCodeNotFound ErrorCode = "NOT_FOUND_5001"

	// Rate Limiting Errors (6xxx)
	ErrCodeRateLimitExceeded ErrorCode = "RATE_6001"

	// Server Errors (9xxx)
	ErrCodeInternalServerError ErrorCode = "SERVER_9001"
)

// AppError represents a structured application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code, so
// errors.Is(err, ErrInvalidCredentials()) works on fresh instances.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// Authentication errors

// ErrInvalidCredentials is returned for both unknown emails and wrong
// passwords; the two cases must stay indistinguishable.
func ErrInvalidCredentials() *AppError {
	return NewAppError(ErrCodeInvalidCredentials, "Invalid credentials", "", nil)
}

func ErrUserNotFound() *AppError {
	return NewAppError(ErrCodeUserNotFound, "Invalid token - user not found", "", nil)
}

func ErrSignatureInvalid(cause error) *AppError {
	return NewAppError(ErrCodeSignatureInvalid, "Invalid token", "", cause)
}

func ErrTokenExpired(cause error) *AppError {
	return NewAppError(ErrCodeTokenExpired, "Token expired", "", cause)
}

func ErrSessionTooOld(details string) *AppError {
	return NewAppError(ErrCodeSessionTooOld, "Session exceeded its maximum lifetime, please log in again", details, nil)
}

// Validation errors

func ErrMissingFields(fields ...string) *AppError {
	details := ""
	if len(fields) > 0 {
		details = fmt.Sprintf("Fields: %v", fields)
	}
	return NewAppError(ErrCodeMissingFields, "Missing required fields", details, nil)
}

func ErrInvalidRequest(details string) *AppError {
	return NewAppError(ErrCodeInvalidRequest, "Invalid request body", details, nil)
}

func ErrInvalidRole(role string) *AppError {
	return NewAppError(ErrCodeInvalidRole, "Invalid role", fmt.Sprintf("Role: %s", role), nil)
}

// Conflict errors

func ErrDuplicateEmail() *AppError {
	return NewAppError(ErrCodeDuplicateEmail, "User with this email already exists", "", nil)
}

// Authorization errors

func ErrRoleForbidden(role string) *AppError {
	return NewAppError(ErrCodeRoleForbidden, "Not allowed to register with this role", fmt.Sprintf("Role: %s", role), nil)
}

func ErrNotFound(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, "Route not found", resource, nil)
}

func ErrRateLimitExceeded(window string) *AppError {
	return NewAppError(ErrCodeRateLimitExceeded, "Too many requests from this IP, please try again later.", fmt.Sprintf("Retry after: %s", window), nil)
}

// Server errors

func ErrInternalServerError(details string, cause error) *AppError {
	return NewAppError(ErrCodeInternalServerError, "Internal server error", details, cause)
}

// AsAppError returns err as an *AppError, wrapping anything unexpected as an
// internal error.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServerError("", err)
}

// GetHTTPStatusCode maps an error onto its HTTP status code.
func GetHTTPStatusCode(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Code {
	case ErrCodeInvalidCredentials, ErrCodeUserNotFound, ErrCodeSignatureInvalid,
		ErrCodeTokenExpired, ErrCodeSessionTooOld:
		return http.StatusUnauthorized
	case ErrCodeMissingFields, ErrCodeInvalidRequest, ErrCodeInvalidRole:
		return http.StatusBadRequest
	case ErrCodeDuplicateEmail:
		return http.StatusConflict
	case ErrCodeRoleForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
