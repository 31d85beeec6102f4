package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/DanielPopoola/checkout-sessions/internal/config"
	"github.com/DanielPopoola/checkout-sessions/internal/core/ports"
)

const instrumentationName = "github.com/DanielPopoola/checkout-sessions/internal/adapters/checkout"

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 4 << 20

// HTTPClient performs exactly one HTTP round trip per request. It never
// retries; see RetryClient for that.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
	logger     *slog.Logger
}

func NewHTTPClient(cfg config.APIClientConfig, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tracer: otel.Tracer(instrumentationName),
		logger: logger,
	}
}

func (c *HTTPClient) Perform(ctx context.Context, req ports.Request) (*ports.Response, error) {
	ctx, span := c.tracer.Start(ctx, "checkout "+req.Method()+" "+req.Path(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("checkout.path", req.Path())),
	)
	defer span.End()

	resp, err := c.perform(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	return resp, nil
}

func (c *HTTPClient) perform(ctx context.Context, req ports.Request) (*ports.Response, error) {
	var bodyReader io.Reader
	if body := req.Body(); body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method(), c.url(req), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if bodyReader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for name, value := range req.Headers() {
		httpReq.Header.Set(name, value)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("read response body: %w", err)}
	}

	c.logger.Debug("checkout request completed",
		"method", req.Method(),
		"path", req.Path(),
		"status", resp.StatusCode,
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseAPIError(resp.StatusCode, body)
	}

	decoded, err := req.Decode(body)
	if err != nil {
		return nil, &UnknownError{
			Description: fmt.Sprintf("unexpected response for %s", req.Path()),
			Err:         err,
		}
	}
	decoded.StatusCode = resp.StatusCode

	return decoded, nil
}

func (c *HTTPClient) url(req ports.Request) string {
	u := c.baseURL + "/" + strings.TrimLeft(req.Path(), "/")

	items := req.QueryParameters()
	if len(items) == 0 {
		return u
	}

	pairs := make([]string, 0, len(items))
	for _, item := range items {
		pairs = append(pairs, url.QueryEscape(item.Name)+"="+url.QueryEscape(item.Value))
	}
	return u + "?" + strings.Join(pairs, "&")
}

func parseAPIError(status int, body []byte) *APIError {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.ErrorCode == "" {
		return &APIError{
			Status:       status,
			ErrorMessage: fmt.Sprintf("backend returned status %d: %s", status, string(body)),
			Type:         ErrorTypeInternal,
		}
	}

	apiErr := &APIError{
		Status:       status,
		ErrorCode:    errResp.ErrorCode,
		ErrorMessage: errResp.Message,
		Type:         parseErrorType(errResp.ErrorType),
	}
	if errResp.Status != nil {
		apiErr.Status = *errResp.Status
	}
	return apiErr
}
