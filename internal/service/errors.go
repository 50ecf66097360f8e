package service

import (
	"errors"
	"time"
)

// Error kinds. Every error returned by the services matches one of these via errors.Is,
// or is an internal failure.
var (
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRateLimited        = errors.New("too many requests")
	ErrNotFound           = errors.New("not found")
	ErrUnavailable        = errors.New("unavailable")
)

var (
	ErrUsernameTaken      = kindError(ErrConflict, "Username already exists")
	ErrEmailTaken         = kindError(ErrConflict, "Email already exists")
	ErrAccountExists      = kindError(ErrConflict, "Username or email already exists")
	ErrLastRole           = kindError(ErrConflict, "User must keep at least one role")
	ErrBadLogin           = kindError(ErrInvalidCredentials, "Invalid username or password")
	ErrInvalidOtp         = kindError(ErrInvalidCredentials, "Invalid or expired verification code")
	ErrWrongPassword      = kindError(ErrInvalidCredentials, "Current password is incorrect")
	ErrAccountInactive    = kindError(ErrForbidden, "Account is inactive")
	ErrOverrideNotAllowed = kindError(ErrForbidden, "Forbidden: admin override not allowed")
	ErrSuperAdminRequired = kindError(ErrForbidden, "Super Admin role required")
	ErrProtectedAccount   = kindError(ErrForbidden, "Super Admin accounts cannot be deactivated")
	ErrWrongTokenKind     = kindError(ErrForbidden, "Wrong token type")
	ErrMissingToken       = kindError(ErrUnauthorized, "No token provided")
	ErrInvalidToken       = kindError(ErrUnauthorized, "Invalid or expired token")
	ErrRefreshReused      = kindError(ErrUnauthorized, "Refresh token already used")
	ErrUserNotFound       = kindError(ErrNotFound, "User not found")
	ErrRoleNotFound       = kindError(ErrNotFound, "Role not found")
	ErrRoleNotAssigned    = kindError(ErrNotFound, "User does not have this role")
	ErrOtpUnavailable     = kindError(ErrUnavailable, "Verification codes are not available")
)

// kindedError carries a caller-facing message and unwraps to its kind.
type kindedError struct {
	kind    error
	message string
}

func kindError(kind error, message string) error {
	return &kindedError{kind: kind, message: message}
}

func (e *kindedError) Error() string {
	return e.message
}

func (e *kindedError) Unwrap() error {
	return e.kind
}

// ValidationError is safe to show to the caller in full.
type ValidationError struct {
	Message string
	Details []string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(message string, details ...string) error {
	return &ValidationError{Message: message, Details: details}
}

type RateLimitError struct {
	Reason     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return e.Reason
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// OtpDeliveryError reports that a code was issued but could not be delivered.
type OtpDeliveryError struct {
	Err error
}

func (e *OtpDeliveryError) Error() string {
	return "failed to send verification code: " + e.Err.Error()
}

func (e *OtpDeliveryError) Unwrap() error {
	return e.Err
}
