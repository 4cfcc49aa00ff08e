package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	// General errors
	ErrInternal       = errors.New("internal server error")
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrForbidden      = errors.New("access denied")
	ErrUnauthorized   = errors.New("unauthorized")

	// Authentication errors
	ErrInvalidCredentials        = errors.New("invalid credentials")
	ErrEmailVerificationRequired = errors.New("email verification required")
	ErrTwoFactorRequired         = errors.New("two-factor authentication required")
	ErrInvalidCode               = errors.New("invalid verification code")
	ErrAlreadyVerified           = errors.New("email already verified")

	// Token errors
	ErrTokenInvalid         = errors.New("invalid token")
	ErrTokenExpired         = errors.New("expired token")
	ErrTokenRevoked         = errors.New("revoked token")
	ErrTenantMismatch       = errors.New("token tenant mismatch")
	ErrRefreshWindowExpired = errors.New("refresh window expired")

	// Challenge errors
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeExpired  = errors.New("challenge expired")

	// User errors
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already in use")
	ErrUserDeleted  = errors.New("user account deleted")

	// Concurrency errors
	ErrVersionConflict = errors.New("stale version, concurrent update detected")

	// Two-factor errors
	Err2FAAlreadyEnabled = errors.New("two-factor authentication already enabled")
	Err2FANotEnabled     = errors.New("two-factor authentication not enabled")

	// Webhook errors
	ErrWebhookNotFound  = errors.New("webhook not found")
	ErrDeliveryNotFound = errors.New("webhook delivery not found")
	ErrWebhookInactive  = errors.New("webhook is inactive")
)

// RateLimitedError reports a rejected operation together with the time the
// caller must wait before retrying.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// NewRateLimited builds a RateLimitedError with the given retry-after hint.
func NewRateLimited(retryAfter time.Duration) *RateLimitedError {
	return &RateLimitedError{RetryAfter: retryAfter}
}

// IsRateLimited reports whether err is a rate limit rejection and returns the
// retry-after hint when it is.
func IsRateLimited(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

// ValidationError marks malformed input. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidation builds a ValidationError for the given field.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConfigurationError is fatal at startup (missing signing secret, bad key
// material). Nothing recovers from it at runtime.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Reason)
}

// NewConfiguration builds a ConfigurationError for the given config key.
func NewConfiguration(key, reason string) *ConfigurationError {
	return &ConfigurationError{Key: key, Reason: reason}
}

// AppError carries an application error with user-facing metadata.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Code       string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error.
func NewAppError(err error, message string, statusCode int, code string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: statusCode,
		Code:       code,
	}
}

// IsNotFound reports whether err is a "not found" class error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrWebhookNotFound) ||
		errors.Is(err, ErrDeliveryNotFound) ||
		errors.Is(err, ErrChallengeNotFound)
}

// IsUnauthorized reports whether err is an authentication class error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrTokenInvalid) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenRevoked) ||
		errors.Is(err, ErrTenantMismatch)
}

// IsConflict reports whether err is a conflict class error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrEmailExists) ||
		errors.Is(err, ErrVersionConflict)
}

// IsBadRequest reports whether err is a malformed input class error.
func IsBadRequest(err error) bool {
	var ve *ValidationError
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidCode) ||
		errors.As(err, &ve)
}
