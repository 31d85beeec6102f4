package checkout

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/DanielPopoola/checkout-sessions/internal/config"
	"github.com/DanielPopoola/checkout-sessions/internal/core/ports"
)

// ShouldRetry decides from one attempt's outcome whether to try again.
type ShouldRetry func(resp *ports.Response, err error) bool

// RetryOnError retries every failed attempt.
func RetryOnError(_ *ports.Response, err error) bool {
	return err != nil
}

// RetryOnTransient retries transport failures and retryable backend errors only.
func RetryOnTransient(_ *ports.Response, err error) bool {
	if err == nil {
		return false
	}
	if IsNetworkError(err) {
		return true
	}
	if apiErr, ok := IsAPIError(err); ok {
		return apiErr.IsRetryable()
	}
	return false
}

// RetryClient repeats a request while the caller's predicate asks for it,
// up to maximumCount attempts in total. Callers only ever see the outcome
// of the last attempt.
type RetryClient struct {
	inner        ports.APIClient
	maximumCount int
	newBackOff   func() backoff.BackOff
	retries      metric.Int64Counter
	logger       *slog.Logger
}

func NewRetryClient(inner ports.APIClient, cfg config.RetryConfig, logger *slog.Logger) *RetryClient {
	maximumCount := cfg.MaximumCount
	if maximumCount < 1 {
		maximumCount = 1
	}

	retries, err := otel.Meter(instrumentationName).Int64Counter(
		"checkout.client.retries",
		metric.WithDescription("Number of retried checkout requests"),
	)
	if err != nil {
		logger.Warn("retry counter unavailable", "error", err)
		retries = noop.Int64Counter{}
	}

	return &RetryClient{
		inner:        inner,
		maximumCount: maximumCount,
		newBackOff:   backOffFactory(cfg),
		retries:      retries,
		logger:       logger,
	}
}

func backOffFactory(cfg config.RetryConfig) func() backoff.BackOff {
	if cfg.Strategy == config.RetryStrategyExponential {
		return func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = cfg.BaseDelay
			if cfg.MaxDelay > 0 {
				b.MaxInterval = cfg.MaxDelay
			}
			// attempts are bounded by maximumCount, not by elapsed time
			b.MaxElapsedTime = 0
			b.Reset()
			return b
		}
	}
	return func() backoff.BackOff {
		return backoff.NewConstantBackOff(cfg.BaseDelay)
	}
}

// Perform retries failed attempts.
func (r *RetryClient) Perform(ctx context.Context, req ports.Request) (*ports.Response, error) {
	return r.PerformWithRetry(ctx, req, RetryOnError)
}

// PerformWithRetry runs req until shouldRetry returns false or the attempt
// budget is spent. If the context ends while waiting between attempts the
// last observed outcome is returned.
func (r *RetryClient) PerformWithRetry(ctx context.Context, req ports.Request, shouldRetry ShouldRetry) (*ports.Response, error) {
	if shouldRetry == nil {
		shouldRetry = RetryOnError
	}
	b := r.newBackOff()

	for attempt := 1; ; attempt++ {
		resp, err := r.inner.Perform(ctx, req)

		if attempt >= r.maximumCount || !shouldRetry(resp, err) {
			return resp, err
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			return resp, err
		}

		r.logger.Debug("retrying checkout request",
			"path", req.Path(),
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		r.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("path", req.Path())))

		if waitErr := sleepOrDone(ctx, delay); waitErr != nil {
			return resp, err
		}
	}
}

// sleepOrDone waits for d or returns early on context cancellation.
func sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
