package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/DanielPopoola/checkout-sessions/internal/interfaces/rest"
)

// Recovery turns a panicking handler into a 500 in the checkout error format.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error(
						"panic recovered",
						"panic", rec,
						"method", r.Method,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)

					rest.WriteError(w, rest.InternalError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
