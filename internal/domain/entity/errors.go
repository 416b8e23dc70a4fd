package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed indicates that validation checks have failed
	ErrValidationFailed = errors.New("validation failed")
)

// ErrorCode classifies why a delivery attempt did not succeed.
// Codes are carried inside DeliveryResult values; gateway clients never
// return them as Go errors.
type ErrorCode string

const (
	// ErrCodeCredentialsMissing means the channel is not configured. Never retried.
	ErrCodeCredentialsMissing ErrorCode = "CREDENTIALS_MISSING"
	// ErrCodeInvalidPhoneNumber means the recipient failed validation. Never sent.
	ErrCodeInvalidPhoneNumber ErrorCode = "INVALID_PHONE_NUMBER"
	// ErrCodeMissingKeys means a push subscription carries no usable keys.
	ErrCodeMissingKeys ErrorCode = "MISSING_KEYS"
	// ErrCodeNetwork is a transport level failure (DNS, connect, timeout).
	ErrCodeNetwork ErrorCode = "NETWORK_ERROR"
	// ErrCodeProvider is a non-2xx answer from the provider.
	ErrCodeProvider ErrorCode = "PROVIDER_ERROR"
	// ErrCodeSubscriptionExpired is a 404/410 from a push service.
	ErrCodeSubscriptionExpired ErrorCode = "subscription_expired"
	// ErrCodeEncryption covers key decoding and payload encryption failures.
	ErrCodeEncryption ErrorCode = "ENCRYPTION_ERROR"
	// ErrCodePayloadTooLarge means the push payload does not fit a single record.
	ErrCodePayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"
	// ErrCodeCircuitOpen means the channel breaker rejected the call.
	ErrCodeCircuitOpen ErrorCode = "CIRCUIT_OPEN"
	// ErrCodeNoChannels means the dispatcher had nothing to try.
	ErrCodeNoChannels ErrorCode = "NO_CHANNELS"
	// ErrCodeNoSubscriptions means the user has no active push subscription.
	ErrCodeNoSubscriptions ErrorCode = "NO_SUBSCRIPTIONS"
	// ErrCodeInternal is a failure inside the engine itself (e.g. storage).
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// IsValidationError reports whether err is, or wraps, a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
