package domain

import (
	"errors"
	"fmt"
)

// ComponentError is raised locally by a component or the session, never by the backend.
type ComponentError struct {
	Code    string
	Message string
}

func (e *ComponentError) Error() string {
	return e.Message
}

// Is matches on Code so sentinel values work with errors.Is.
func (e *ComponentError) Is(target error) bool {
	var other *ComponentError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

const (
	ErrCodeCancelled                 = "CANCELLED"
	ErrCodePaymentMethodNotSupported = "PAYMENT_METHOD_NOT_SUPPORTED"
	ErrCodeZeroBalance               = "ZERO_BALANCE"
	ErrCodeMissingRequiredField      = "MISSING_REQUIRED_FIELD"
	ErrCodeActionNotHandled          = "ACTION_NOT_HANDLED"
)

var (
	ErrCancelled = &ComponentError{
		Code:    ErrCodeCancelled,
		Message: "payment was cancelled by the shopper",
	}
	ErrPaymentMethodNotSupported = &ComponentError{
		Code:    ErrCodePaymentMethodNotSupported,
		Message: "payment method is not supported",
	}
	ErrZeroBalance = &ComponentError{
		Code:    ErrCodeZeroBalance,
		Message: "payment method has no balance left",
	}
	ErrActionNotHandled = &ComponentError{
		Code:    ErrCodeActionNotHandled,
		Message: "no handler is registered for the returned action",
	}
)

func NewMissingRequiredFieldError(field string) *ComponentError {
	return &ComponentError{
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
	}
}

// EncryptionError wraps failures from the card encryption collaborator.
type EncryptionError struct {
	Field string
	Err   error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("encrypt %s: %v", e.Field, e.Err)
}

func (e *EncryptionError) Unwrap() error {
	return e.Err
}

// IsErrorCode checks if an error is a ComponentError with a specific code
func IsErrorCode(err error, code string) bool {
	var compErr *ComponentError
	if errors.As(err, &compErr) {
		return compErr.Code == code
	}
	return false
}
