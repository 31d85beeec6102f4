package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanielPopoola/checkout-sessions/internal/config"
	"github.com/DanielPopoola/checkout-sessions/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := telemetry.Init(context.Background(), config.TelemetryConfig{Enabled: false})

	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_OTLP(t *testing.T) {
	cfg := config.TelemetryConfig{
		Enabled:        true,
		OTLPEndpoint:   "localhost:4318",
		OTLPInsecure:   true,
		ServiceName:    "checkout-test",
		ServiceVersion: "0.0.0",
	}

	// Exporters connect lazily, so setup succeeds without a collector.
	shutdown, err := telemetry.Init(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
