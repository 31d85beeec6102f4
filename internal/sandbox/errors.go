package sandbox

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/DanielPopoola/checkout-sessions/internal/adapters/checkout"
	"github.com/DanielPopoola/checkout-sessions/internal/core/ports"
)

// Error is a failure the sandbox reports in the checkout error format.
type Error struct {
	Status  int
	Code    string
	Message string
	Type    checkout.ErrorType
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// APIError is the wire form of e.
func (e *Error) APIError() *checkout.APIError {
	return &checkout.APIError{
		Status:       e.Status,
		ErrorCode:    e.Code,
		ErrorMessage: e.Message,
		Type:         e.Type,
	}
}

const (
	CodeValidation     = "000_VALIDATION"
	CodeInvalidJSON    = "000_INVALID_JSON"
	CodeSessionExpired = "000_SESSION_EXPIRED"
	CodeSessionUnknown = "000_SESSION_NOT_FOUND"
	CodeClientKey      = "010_INVALID_CLIENT_KEY"
	CodeOrderUnknown   = "000_ORDER_NOT_FOUND"
	CodeOrderInactive  = "000_ORDER_NOT_ACTIVE"
	CodeTokenUnknown   = "000_TOKEN_NOT_FOUND"
	CodeInternal       = "000_INTERNAL"
)

func NewValidationError(message string) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Code: CodeValidation, Message: message, Type: checkout.ErrorTypeValidation}
}

func newInvalidJSONError(err error) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeInvalidJSON, Message: "request body is not valid JSON", Type: checkout.ErrorTypeValidation, Err: err}
}

func newSessionExpiredError(err error) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeSessionExpired, Message: "session data is expired or no longer current", Type: checkout.ErrorTypeSessionExpired, Err: err}
}

func newSessionNotFoundError(id string) *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeSessionUnknown, Message: fmt.Sprintf("session %s does not exist", id), Type: checkout.ErrorTypeValidation}
}

func newClientKeyError() *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeClientKey, Message: "client key is missing or invalid", Type: checkout.ErrorTypeSecurity}
}

func newOrderNotFoundError(pspReference string) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Code: CodeOrderUnknown, Message: fmt.Sprintf("order %s does not exist", pspReference), Type: checkout.ErrorTypeValidation}
}

func newOrderInactiveError(pspReference, status string) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Code: CodeOrderInactive, Message: fmt.Sprintf("order %s is %s", pspReference, status), Type: checkout.ErrorTypeValidation}
}

func newInternalError(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal sandbox error", Type: checkout.ErrorTypeInternal, Err: err}
}

// toError maps any failure onto its wire representation.
func toError(err error) *Error {
	var sbErr *Error
	if errors.As(err, &sbErr) {
		return sbErr
	}
	switch {
	case errors.Is(err, ports.ErrStaleSessionData):
		return newSessionExpiredError(err)
	case errors.Is(err, ports.ErrSessionNotFound):
		return &Error{Status: http.StatusNotFound, Code: CodeSessionUnknown, Message: "session does not exist", Type: checkout.ErrorTypeValidation, Err: err}
	case errors.Is(err, ports.ErrOrderNotFound):
		return &Error{Status: http.StatusUnprocessableEntity, Code: CodeOrderUnknown, Message: "order does not exist", Type: checkout.ErrorTypeValidation, Err: err}
	}
	return newInternalError(err)
}
