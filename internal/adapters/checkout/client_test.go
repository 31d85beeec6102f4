package checkout_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanielPopoola/checkout-sessions/internal/adapters/checkout"
	"github.com/DanielPopoola/checkout-sessions/internal/config"
	"github.com/DanielPopoola/checkout-sessions/internal/core/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *checkout.HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return checkout.NewHTTPClient(config.APIClientConfig{
		BaseURL: server.URL + "/",
		Timeout: 5 * time.Second,
	}, discardLogger())
}

func newSessionContext(t *testing.T) *domain.SessionContext {
	t.Helper()
	sc, err := domain.NewSessionContext(domain.SessionSnapshot{ID: "S1", Data: "D0"})
	require.NoError(t, err)
	return sc
}

func TestHTTPClient_Perform_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkoutshopper/v1/sessions/S1/setup", r.URL.Path)
		assert.Equal(t, "clientKey=test_KEY", r.URL.RawQuery)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "D0", body["sessionData"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"sessionData":"D1",
			"amount":{"value":1000,"currency":"EUR"},
			"paymentMethods":{"paymentMethods":[{"type":"scheme","name":"Cards"}]}
		}`))
	})

	resp, err := client.Perform(t.Context(), checkout.NewSetupRequest(newSessionContext(t), "test_KEY"))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, resp.SessionData)
	assert.Equal(t, "D1", *resp.SessionData)
	assert.Nil(t, resp.ResultCode)

	setup, err := checkout.Value[checkout.SetupResponse](resp)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount{Value: 1000, Currency: "EUR"}, setup.Amount)
	assert.Len(t, setup.PaymentMethods.Regular, 1)
}

func TestHTTPClient_Perform_GetHasNoBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/checkoutshopper/v1/clientKeys/test_KEY", r.URL.Path)
		assert.Empty(t, r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"publicKey":"10001|ABCD"}`))
	})

	key, err := checkout.Do[checkout.PublicKeyResponse](t.Context(), client, checkout.PublicKeyRequest{ClientKey: "test_KEY"})

	require.NoError(t, err)
	assert.Equal(t, "10001|ABCD", key.PublicKey)
}

func TestHTTPClient_Perform_StructuredAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":401,"errorCode":"000","message":"session expired","errorType":"sessionExpired"}`))
	})

	_, err := client.Perform(t.Context(), checkout.NewSetupRequest(newSessionContext(t), "test_KEY"))

	apiErr, ok := checkout.IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "000", apiErr.ErrorCode)
	assert.Equal(t, checkout.ErrorTypeSessionExpired, apiErr.Type)
	assert.False(t, apiErr.IsRetryable())
}

func TestHTTPClient_Perform_UnknownErrorTypeIsInternal(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":400,"errorCode":"702","message":"bad","errorType":"somethingNew"}`))
	})

	_, err := client.Perform(t.Context(), checkout.NewSetupRequest(newSessionContext(t), "test_KEY"))

	apiErr, ok := checkout.IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, checkout.ErrorTypeInternal, apiErr.Type)
}

func TestHTTPClient_Perform_UnparsableErrorBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	_, err := client.Perform(t.Context(), checkout.NewSetupRequest(newSessionContext(t), "test_KEY"))

	apiErr, ok := checkout.IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, checkout.ErrorTypeInternal, apiErr.Type)
	assert.True(t, apiErr.IsRetryable())
}

func TestHTTPClient_Perform_MalformedSuccessBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `<html>ok</html>`},
		{name: "array", body: `[1,2,3]`},
		{name: "unknown result code", body: `{"sessionData":"D1","resultCode":"Maybe"}`},
		{name: "unknown action", body: `{"sessionData":"D1","action":{"type":"teleport"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			req := checkout.NewPaymentsRequest(newSessionContext(t), "test_KEY", domain.PaymentComponentData{
				PaymentMethod: domain.InstantDetails{Type: "paypal"},
			})
			_, err := client.Perform(t.Context(), req)

			var unknown *checkout.UnknownError
			assert.ErrorAs(t, err, &unknown)
		})
	}
}

func TestHTTPClient_Perform_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client := checkout.NewHTTPClient(config.APIClientConfig{BaseURL: server.URL, Timeout: time.Second}, discardLogger())
	_, err := client.Perform(t.Context(), checkout.PublicKeyRequest{ClientKey: "test_KEY"})

	require.Error(t, err)
	assert.True(t, checkout.IsNetworkError(err))
}

func TestHTTPClient_CreateSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/checkout/v71/sessions", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)

		var body checkout.CreateSessionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, domain.Amount{Value: 2500, Currency: "EUR"}, body.Amount)
		assert.Equal(t, "order-1", body.Reference)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"CS1","sessionData":"D0","amount":{"value":2500,"currency":"EUR"},"reference":"order-1"}`))
	})

	created, err := checkout.Do[checkout.CreateSessionResponse](t.Context(), client, checkout.CreateSessionRequest{
		Amount:      domain.Amount{Value: 2500, Currency: "EUR"},
		CountryCode: "NL",
		Reference:   "order-1",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.SessionSnapshot{ID: "CS1", Data: "D0"}, created.Snapshot())
}
