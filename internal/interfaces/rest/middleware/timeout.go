package middleware

import (
	"context"
	"net/http"
	"time"
)

const timeoutBody = `{"status":503,"errorCode":"000_TIMEOUT","message":"request timed out","errorType":"internal"}`

func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			r = r.WithContext(ctx)

			http.TimeoutHandler(next, timeout, timeoutBody).ServeHTTP(w, r)
		})
	}
}
