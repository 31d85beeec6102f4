package checkout

import (
	"errors"
	"fmt"
)

// NetworkError is a transport failure: no HTTP response was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ErrorType classifies a structured backend error.
type ErrorType string

const (
	ErrorTypeInternal       ErrorType = "internal"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeSecurity       ErrorType = "security"
	ErrorTypeConfiguration  ErrorType = "configuration"
	ErrorTypeURLError       ErrorType = "urlError"
	ErrorTypeNoInternet     ErrorType = "noInternet"
	ErrorTypeSessionExpired ErrorType = "sessionExpired"
)

func parseErrorType(s string) ErrorType {
	switch t := ErrorType(s); t {
	case ErrorTypeInternal, ErrorTypeValidation, ErrorTypeSecurity, ErrorTypeConfiguration,
		ErrorTypeURLError, ErrorTypeNoInternet, ErrorTypeSessionExpired:
		return t
	}
	return ErrorTypeInternal
}

// APIError is a non-2xx reply from the backend.
type APIError struct {
	Status       int
	ErrorCode    string
	ErrorMessage string
	Type         ErrorType
}

// ErrorResponse is the wire form of an APIError.
type ErrorResponse struct {
	Status    *int   `json:"status,omitempty"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
	ErrorType string `json:"errorType"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error [%s/%s]: %s (status: %d)", e.Type, e.ErrorCode, e.ErrorMessage, e.Status)
}

// IsRetryable reports whether repeating the same call could succeed.
func (e *APIError) IsRetryable() bool {
	return e.Status >= 500 || e.Type == ErrorTypeNoInternet
}

// UnknownError means the response had a shape the client did not expect.
type UnknownError struct {
	Description string
	Err         error
}

func (e *UnknownError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unknown error: %s: %v", e.Description, e.Err)
	}
	return "unknown error: " + e.Description
}

func (e *UnknownError) Unwrap() error {
	return e.Err
}

func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
