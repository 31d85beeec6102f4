package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DanielPopoola/checkout-sessions/internal/adapters/postgres"
	"github.com/DanielPopoola/checkout-sessions/internal/config"
	"github.com/DanielPopoola/checkout-sessions/internal/interfaces/rest/middleware"
	"github.com/DanielPopoola/checkout-sessions/internal/sandbox"
	"github.com/DanielPopoola/checkout-sessions/internal/telemetry"
	"github.com/DanielPopoola/checkout-sessions/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.LoadSandboxConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting checkout sandbox",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		logger.Error("failed to initialise telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	store := postgres.NewSessionStore(db)
	service := sandbox.NewService(store, cfg.Sandbox, logger)

	router, err := sandbox.NewRouter(
		sandbox.NewHandler(service, logger),
		middleware.NewMetrics("sandbox"),
		cfg.Server.ReadTimeout,
		logger,
	)
	if err != nil {
		logger.Error("failed to build router", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	expirationWorker := worker.NewExpirationWorker(
		store,
		cfg.Worker.Interval,
		cfg.Worker.BatchSize,
		logger,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		expirationWorker.Start(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("sandbox stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited")
}
