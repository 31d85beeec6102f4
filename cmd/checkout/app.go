package main

import (
	"context"
	"log/slog"

	"github.com/DanielPopoola/checkout-sessions/internal/adapters/checkout"
	"github.com/DanielPopoola/checkout-sessions/internal/config"
	"github.com/DanielPopoola/checkout-sessions/internal/core/domain"
	"github.com/DanielPopoola/checkout-sessions/internal/scenario"
	"github.com/DanielPopoola/checkout-sessions/internal/telemetry"
)

// app is what every command needs: the client chain, a runner and the
// loaded scenario.
type app struct {
	cfg      *config.ClientConfig
	logger   *slog.Logger
	runner   *scenario.Runner
	scenario *scenario.Scenario
	shutdown telemetry.ShutdownFunc
}

func newApp(ctx context.Context, flags *sessionFlags) (*app, error) {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger.NewLogger()

	sc, err := scenario.Load(flags.scenario)
	if err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return nil, err
	}

	base := checkout.NewHTTPClient(cfg.Client, logger)
	client := checkout.NewRetryClient(base, cfg.Retry, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		runner:   scenario.NewRunner(client, cfg.Client.ClientKey, logger),
		scenario: sc,
		shutdown: shutdown,
	}, nil
}

// snapshot resumes the flagged session or opens the scenario's one.
func (a *app) snapshot(ctx context.Context, flags *sessionFlags) (domain.SessionSnapshot, error) {
	if flags.sessionID != "" {
		return domain.SessionSnapshot{ID: flags.sessionID, Data: flags.sessionData}, nil
	}
	return a.runner.CreateSession(ctx, a.scenario.Session)
}

func (a *app) close(ctx context.Context) {
	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", "error", err)
	}
}
