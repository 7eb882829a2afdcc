package errors

import "fmt"

type baseError struct {
	message string
}

func (e *baseError) Error() string {
	return e.message
}

// AuthDataExpiredError signals that the pending registration data for a user
// is missing or expired and the registration must be restarted.
type AuthDataExpiredError struct {
	baseError
}

func NewAuthDataExpiredError(message string) *AuthDataExpiredError {
	return &AuthDataExpiredError{baseError{message: message}}
}

func NewAuthDataExpiredErrorf(format string, args ...interface{}) *AuthDataExpiredError {
	return &AuthDataExpiredError{baseError{message: fmt.Sprintf(format, args...)}}
}

// ClientNotFoundError signals an operation targeting a user with no live session.
type ClientNotFoundError struct {
	baseError
}

func NewClientNotFoundError(message string) *ClientNotFoundError {
	return &ClientNotFoundError{baseError{message: message}}
}

func NewClientNotFoundErrorf(format string, args ...interface{}) *ClientNotFoundError {
	return &ClientNotFoundError{baseError{message: fmt.Sprintf(format, args...)}}
}

// ProtocolClientError wraps a connect or handshake failure of the underlying
// MTProto client.
type ProtocolClientError struct {
	baseError
	cause error
}

func NewProtocolClientError(message string, cause error) *ProtocolClientError {
	return &ProtocolClientError{baseError: baseError{message: message}, cause: cause}
}

func (e *ProtocolClientError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *ProtocolClientError) Unwrap() error {
	return e.cause
}

// NotFoundError represents a read against a missing durable record.
type NotFoundError struct {
	baseError
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{baseError{message: message}}
}

func NewNotFoundErrorf(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{baseError{message: fmt.Sprintf(format, args...)}}
}

// ValidationError represents malformed input on a broker payload.
type ValidationError struct {
	baseError
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{baseError{message: message}}
}

func NewValidationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{baseError{message: fmt.Sprintf(format, args...)}}
}

// InternalError represents an unexpected failure inside the service.
type InternalError struct {
	baseError
}

func NewInternalError(message string) *InternalError {
	return &InternalError{baseError{message: message}}
}

func NewInternalErrorf(format string, args ...interface{}) *InternalError {
	return &InternalError{baseError{message: fmt.Sprintf(format, args...)}}
}
