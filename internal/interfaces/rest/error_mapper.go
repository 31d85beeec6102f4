package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DanielPopoola/checkout-sessions/internal/adapters/checkout"
)

// WireError is implemented by errors that know how they are reported to clients.
type WireError interface {
	error
	APIError() *checkout.APIError
}

// InternalError is what clients see for failures with no wire form.
var InternalError = &checkout.APIError{
	Status:       http.StatusInternalServerError,
	ErrorCode:    "000_INTERNAL",
	ErrorMessage: "internal error",
	Type:         checkout.ErrorTypeInternal,
}

// ToAPIError maps err onto the checkout error format.
func ToAPIError(err error) *checkout.APIError {
	var wireErr WireError
	if errors.As(err, &wireErr) {
		return wireErr.APIError()
	}
	var apiErr *checkout.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return InternalError
}

// WriteError writes err as {status, errorCode, message, errorType}.
func WriteError(w http.ResponseWriter, err error) {
	apiErr := ToAPIError(err)
	status := apiErr.Status

	WriteJSON(w, status, checkout.ErrorResponse{
		Status:    &status,
		ErrorCode: apiErr.ErrorCode,
		Message:   apiErr.ErrorMessage,
		ErrorType: string(apiErr.Type),
	})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
