package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/checkout-sessions/internal/core/ports"
)

// ExpirationWorker moves partial payment orders past their expiry to
// EXPIRED, so their remaining amount can no longer be paid.
type ExpirationWorker struct {
	store     ports.SessionStore
	interval  time.Duration
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

func NewExpirationWorker(
	store ports.SessionStore,
	interval time.Duration,
	batchSize int,
	logger *slog.Logger,
) *ExpirationWorker {
	return &ExpirationWorker{
		store:     store,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
		logger:    logger,
	}
}

// Start runs until ctx is cancelled.
func (w *ExpirationWorker) Start(ctx context.Context) {
	w.logger.Info("expiration worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if _, err := w.processExpirations(ctx); err != nil {
		w.logger.Error("expiration processing failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiration worker stopping")
			return
		case <-ticker.C:
			if _, err := w.processExpirations(ctx); err != nil {
				w.logger.Error("expiration processing failed", "error", err)
			}
		}
	}
}

// processExpirations handles one batch and returns how many orders it expired.
func (w *ExpirationWorker) processExpirations(ctx context.Context) (int, error) {
	now := w.now()

	orders, err := w.store.FindExpiredOrders(ctx, now, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(orders) == 0 {
		return 0, nil
	}

	var expired int
	for _, order := range orders {
		ok, err := w.store.ExpireOrder(ctx, order.PSPReference, now)
		if err != nil {
			w.logger.Error("failed to expire order",
				"psp_reference", order.PSPReference,
				"error", err)
			continue
		}
		if ok {
			expired++
		}
	}

	w.logger.Info("processed expiration check",
		"processed", len(orders),
		"marked_expired", expired)

	return expired, nil
}
