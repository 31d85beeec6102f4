package sandbox

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-playground/validator"

	"github.com/DanielPopoola/checkout-sessions/internal/adapters/checkout"
	"github.com/DanielPopoola/checkout-sessions/internal/interfaces/rest"
)

//go:embed openapi.yaml
var openAPIDocument []byte

// OpenAPI loads the document describing the sandbox endpoints.
func OpenAPI() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPIDocument)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return doc, nil
}

const maxRequestBody = 1 << 20

type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /checkout/v71/sessions", h.HandleCreateSession)

	mux.HandleFunc("POST /checkoutshopper/v1/sessions/{id}/setup", h.withClientKey(h.HandleSetup))
	mux.HandleFunc("POST /checkoutshopper/v1/sessions/{id}/payments", h.withClientKey(h.HandlePayments))
	mux.HandleFunc("POST /checkoutshopper/v1/sessions/{id}/paymentDetails", h.withClientKey(h.HandlePaymentDetails))
	mux.HandleFunc("POST /checkoutshopper/v1/sessions/{id}/paymentMethodBalance", h.withClientKey(h.HandleBalance))
	mux.HandleFunc("POST /checkoutshopper/v1/sessions/{id}/orders", h.withClientKey(h.HandleCreateOrder))
	mux.HandleFunc("POST /checkoutshopper/v1/sessions/{id}/orders/cancel", h.withClientKey(h.HandleCancelOrder))
	mux.HandleFunc("POST /checkoutshopper/v1/sessions/{id}/disableToken", h.withClientKey(h.HandleDisableToken))

	mux.HandleFunc("GET /checkoutshopper/v1/clientKeys/{clientKey}", h.HandlePublicKey)
	mux.HandleFunc("POST /checkoutshopper/v3/binLookup", h.withClientKey(h.HandleBinLookup))
}

func (h *Handler) withClientKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.service.CheckClientKey(r.URL.Query().Get("clientKey")); err != nil {
			h.respondWithError(w, r, err)
			return
		}
		next(w, r)
	}
}

func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	req, err := decode[CreateSessionRequest](h, r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	created, err := h.service.CreateSession(r.Context(), req)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	body, err := decode[checkout.SessionDataBody](h, r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respond(w, r)(h.service.Setup(r.Context(), r.PathValue("id"), body.SessionData))
}

func (h *Handler) HandlePayments(w http.ResponseWriter, r *http.Request) {
	body, err := decode[checkout.PaymentsBody](h, r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respond(w, r)(h.service.Payments(r.Context(), r.PathValue("id"), body))
}

func (h *Handler) HandlePaymentDetails(w http.ResponseWriter, r *http.Request) {
	body, err := decode[checkout.PaymentDetailsBody](h, r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respond(w, r)(h.service.PaymentDetails(r.Context(), r.PathValue("id"), body))
}

func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	body, err := decode[checkout.BalanceBody](h, r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respond(w, r)(h.service.Balance(r.Context(), r.PathValue("id"), body))
}

func (h *Handler) HandleCreateOrder(w http.ResponseWriter, r *http.Request) {
	body, err := decode[checkout.SessionDataBody](h, r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respond(w, r)(h.service.CreateOrder(r.Context(), r.PathValue("id"), body.SessionData))
}

func (h *Handler) HandleCancelOrder(w http.ResponseWriter, r *http.Request) {
	body, err := decode[checkout.CancelOrderBody](h, r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respond(w, r)(h.service.CancelOrder(r.Context(), r.PathValue("id"), body))
}

func (h *Handler) HandleDisableToken(w http.ResponseWriter, r *http.Request) {
	body, err := decode[checkout.DisableTokenBody](h, r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respond(w, r)(h.service.DisableToken(r.Context(), r.PathValue("id"), body))
}

func (h *Handler) HandlePublicKey(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.service.PublicKey(r.PathValue("clientKey")))
}

func (h *Handler) HandleBinLookup(w http.ResponseWriter, r *http.Request) {
	body, err := decode[checkout.BinLookupBody](h, r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, h.service.BinLookup(body))
}

// respond writes the result of a service call: the value on success, the
// error otherwise.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request) func(any, error) {
	return func(v any, err error) {
		if err != nil {
			h.respondWithError(w, r, err)
			return
		}
		rest.WriteJSON(w, http.StatusOK, v)
	}
}

func (h *Handler) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	sbErr := toError(err)
	if sbErr.Status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		h.logger.Warn("request rejected", "path", r.URL.Path, "code", sbErr.Code, "error", err)
	}
	rest.WriteError(w, sbErr)
}

func decode[T any](h *Handler, r *http.Request) (T, error) {
	var v T
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return v, newInvalidJSONError(err)
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, newInvalidJSONError(err)
	}
	if err := h.validate.Struct(v); err != nil {
		return v, NewValidationError(err.Error())
	}
	return v, nil
}
