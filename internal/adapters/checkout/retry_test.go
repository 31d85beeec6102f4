package checkout_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/DanielPopoola/checkout-sessions/internal/adapters/checkout"
	"github.com/DanielPopoola/checkout-sessions/internal/config"
	"github.com/DanielPopoola/checkout-sessions/internal/core/domain"
	"github.com/DanielPopoola/checkout-sessions/internal/core/ports"
	"github.com/DanielPopoola/checkout-sessions/internal/core/ports/mocks"
)

var keyRequest = checkout.PublicKeyRequest{ClientKey: "test_KEY"}

func retryConfig(maximumCount int) config.RetryConfig {
	return config.RetryConfig{
		MaximumCount: maximumCount,
		BaseDelay:    time.Millisecond,
		Strategy:     config.RetryStrategyConstant,
	}
}

func TestRetryClient_SucceedsFirstTime(t *testing.T) {
	inner := mocks.NewMockAPIClient(t)
	client := checkout.NewRetryClient(inner, retryConfig(3), discardLogger())

	want := &ports.Response{StatusCode: http.StatusOK}
	inner.EXPECT().Perform(mock.Anything, keyRequest).Return(want, nil).Once()

	resp, err := client.Perform(context.Background(), keyRequest)

	require.NoError(t, err)
	assert.Same(t, want, resp)
}

func TestRetryClient_ReturnsLastFailure(t *testing.T) {
	inner := mocks.NewMockAPIClient(t)
	client := checkout.NewRetryClient(inner, retryConfig(3), discardLogger())

	first := &checkout.NetworkError{Err: errors.New("reset 1")}
	second := &checkout.NetworkError{Err: errors.New("reset 2")}
	last := &checkout.APIError{Status: http.StatusServiceUnavailable, Type: checkout.ErrorTypeInternal}

	inner.EXPECT().Perform(mock.Anything, keyRequest).Return(nil, first).Once()
	inner.EXPECT().Perform(mock.Anything, keyRequest).Return(nil, second).Once()
	inner.EXPECT().Perform(mock.Anything, keyRequest).Return(nil, last).Once()

	_, err := client.Perform(context.Background(), keyRequest)

	assert.Same(t, last, err)
	inner.AssertNumberOfCalls(t, "Perform", 3)
}

func TestRetryClient_RecoversAfterFailures(t *testing.T) {
	inner := mocks.NewMockAPIClient(t)
	client := checkout.NewRetryClient(inner, retryConfig(3), discardLogger())

	want := &ports.Response{StatusCode: http.StatusOK}
	inner.EXPECT().Perform(mock.Anything, keyRequest).Return(nil, &checkout.NetworkError{Err: errors.New("reset")}).Twice()
	inner.EXPECT().Perform(mock.Anything, keyRequest).Return(want, nil).Once()

	resp, err := client.Perform(context.Background(), keyRequest)

	require.NoError(t, err)
	assert.Same(t, want, resp)
}

func TestRetryClient_PredicateDecides(t *testing.T) {
	inner := mocks.NewMockAPIClient(t)
	client := checkout.NewRetryClient(inner, retryConfig(5), discardLogger())

	validation := &checkout.APIError{Status: http.StatusUnprocessableEntity, Type: checkout.ErrorTypeValidation}
	inner.EXPECT().Perform(mock.Anything, keyRequest).Return(nil, validation).Once()

	_, err := client.PerformWithRetry(context.Background(), keyRequest, checkout.RetryOnTransient)

	assert.Same(t, validation, err)
}

func TestRetryClient_RetriesSuccessfulResultsWhenAsked(t *testing.T) {
	inner := mocks.NewMockAPIClient(t)
	client := checkout.NewRetryClient(inner, retryConfig(3), discardLogger())

	received := domain.ResultReceived
	authorised := domain.ResultAuthorised
	inner.EXPECT().Perform(mock.Anything, keyRequest).Return(&ports.Response{ResultCode: &received}, nil).Once()
	inner.EXPECT().Perform(mock.Anything, keyRequest).Return(&ports.Response{ResultCode: &authorised}, nil).Once()

	untilFinal := func(resp *ports.Response, err error) bool {
		return err == nil && resp.ResultCode != nil && !resp.ResultCode.IsTerminal()
	}
	resp, err := client.PerformWithRetry(context.Background(), keyRequest, untilFinal)

	require.NoError(t, err)
	assert.Equal(t, domain.ResultAuthorised, *resp.ResultCode)
}

func TestRetryClient_MaximumCountBelowOneMeansOneAttempt(t *testing.T) {
	for _, maximumCount := range []int{-1, 0, 1} {
		inner := mocks.NewMockAPIClient(t)
		client := checkout.NewRetryClient(inner, retryConfig(maximumCount), discardLogger())

		boom := &checkout.NetworkError{Err: errors.New("boom")}
		inner.EXPECT().Perform(mock.Anything, keyRequest).Return(nil, boom).Once()

		_, err := client.Perform(context.Background(), keyRequest)
		assert.Same(t, boom, err)
	}
}

func TestRetryClient_ContextCancelledDuringBackoff(t *testing.T) {
	inner := mocks.NewMockAPIClient(t)
	client := checkout.NewRetryClient(inner, config.RetryConfig{
		MaximumCount: 3,
		BaseDelay:    time.Hour,
		Strategy:     config.RetryStrategyConstant,
	}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	boom := &checkout.NetworkError{Err: errors.New("boom")}
	inner.EXPECT().Perform(mock.Anything, keyRequest).
		Run(func(context.Context, ports.Request) { cancel() }).
		Return(nil, boom).
		Once()

	_, err := client.Perform(ctx, keyRequest)

	assert.Same(t, boom, err)
}

func TestRetryClient_ExponentialStrategy(t *testing.T) {
	inner := mocks.NewMockAPIClient(t)
	client := checkout.NewRetryClient(inner, config.RetryConfig{
		MaximumCount: 4,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Strategy:     config.RetryStrategyExponential,
	}, discardLogger())

	boom := &checkout.NetworkError{Err: errors.New("boom")}
	inner.EXPECT().Perform(mock.Anything, keyRequest).Return(nil, boom).Times(4)

	start := time.Now()
	_, err := client.Perform(context.Background(), keyRequest)

	assert.Same(t, boom, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetryOnTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "success", err: nil, want: false},
		{name: "network", err: &checkout.NetworkError{Err: errors.New("reset")}, want: true},
		{name: "server error", err: &checkout.APIError{Status: 503}, want: true},
		{name: "no internet", err: &checkout.APIError{Status: 0, Type: checkout.ErrorTypeNoInternet}, want: true},
		{name: "validation", err: &checkout.APIError{Status: 422, Type: checkout.ErrorTypeValidation}, want: false},
		{name: "session expired", err: &checkout.APIError{Status: 401, Type: checkout.ErrorTypeSessionExpired}, want: false},
		{name: "unknown", err: &checkout.UnknownError{Description: "bad body"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkout.RetryOnTransient(nil, tt.err))
		})
	}
}
