package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"habit-ai-billing/internal/domain/ports/repository"
	"habit-ai-billing/internal/usecase"
)

// LedgerReconciler periodically re-derives subscription and entitlement
// state from recently cancelled payments. The request path updates payment,
// subscriptions and profile as three independent writes; a crash between
// them leaves a cancelled payment with a live subscription. This sweep
// closes that window by re-running the (idempotent) derivation.
type LedgerReconciler struct {
	ledger    usecase.LedgerReconciler
	payments  repository.PaymentRepository
	interval  time.Duration // how often to sweep
	lookback  time.Duration // how far back to re-check cancellations
	batchSize int
	log       *zerolog.Logger
}

func NewLedgerReconciler(
	ledger usecase.LedgerReconciler,
	payments repository.PaymentRepository,
	interval, lookback time.Duration,
	batchSize int,
	logger *zerolog.Logger,
) *LedgerReconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &LedgerReconciler{
		ledger:    ledger,
		payments:  payments,
		interval:  interval,
		lookback:  lookback,
		batchSize: batchSize,
		log:       logger,
	}
}

func (w *LedgerReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *LedgerReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.lookback)
	cancelled, err := w.payments.ListCancelledSince(ctx, nil, cutoff, w.batchSize)
	if err != nil {
		w.log.Warn().Err(err).Msg("ledger-reconciler: list cancelled payments failed")
		return
	}
	for _, p := range cancelled {
		if err := w.ledger.ReconcileCancelled(ctx, p); err != nil {
			w.log.Warn().Err(err).Str("payment_id", p.ID).Msg("ledger-reconciler: reconcile failed")
			continue
		}
	}
	if len(cancelled) > 0 {
		w.log.Debug().Int("count", len(cancelled)).Msg("ledger-reconciler: sweep complete")
	}
}
