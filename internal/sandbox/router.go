package sandbox

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/DanielPopoola/checkout-sessions/internal/interfaces/rest/middleware"
)

// NewRouter mounts the sandbox endpoints, /metrics and /healthz behind the
// middleware chain. Requests are validated against the OpenAPI document
// before they reach a handler.
func NewRouter(handler *Handler, metrics *middleware.Metrics, requestTimeout time.Duration, logger *slog.Logger) (http.Handler, error) {
	doc, err := OpenAPI()
	if err != nil {
		return nil, err
	}
	validateRequests, err := middleware.RequestValidator(doc)
	if err != nil {
		return nil, fmt.Errorf("request validator: %w", err)
	}

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	var h http.Handler = validateRequests(mux)
	h = metrics.Middleware(h)
	h = middleware.Timeout(requestTimeout)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.Recovery(logger)(h)

	return otelhttp.NewHandler(h, "sandbox"), nil
}
