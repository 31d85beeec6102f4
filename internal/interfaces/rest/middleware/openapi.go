package middleware

import (
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	legacyrouter "github.com/getkin/kin-openapi/routers/legacy"

	"github.com/DanielPopoola/checkout-sessions/internal/adapters/checkout"
	"github.com/DanielPopoola/checkout-sessions/internal/interfaces/rest"
)

const codeRequestValidation = "000_REQUEST_VALIDATION"

// RequestValidator rejects requests that do not match doc. Paths the
// document does not describe are passed through.
func RequestValidator(doc *openapi3.T) (func(http.Handler) http.Handler, error) {
	router, err := legacyrouter.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}

	options := &openapi3filter.Options{
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options:    options,
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				rest.WriteError(w, &checkout.APIError{
					Status:       http.StatusUnprocessableEntity,
					ErrorCode:    codeRequestValidation,
					ErrorMessage: err.Error(),
					Type:         checkout.ErrorTypeValidation,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}
