// Package worker ties pairing, the executor engine, and the reconciler into
// signal_worker.py's run() tick: hydrate new orders, reconcile stale sent
// orders, execute queued orders, log one structured summary line, sleep.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/mirrorcore/internal/domain"
	"github.com/alejandrodnm/mirrorcore/internal/executor"
	"github.com/alejandrodnm/mirrorcore/internal/pairing"
	"github.com/alejandrodnm/mirrorcore/internal/ports"
	"github.com/alejandrodnm/mirrorcore/internal/reconciler"
)

// Config is the worker-loop tick floors/cooldowns/poll cadence.
type Config struct {
	PollInterval          time.Duration
	BlockAlertCooldownSec int64
	QueuedBatchSize       int
	StaleBatchSize        int
}

// Worker runs one tick of the pipeline repeatedly until its context is
// canceled.
type Worker struct {
	log        *slog.Logger
	store      ports.Store
	pairing    *pairing.Processor
	engine     *executor.Engine
	reconciler *reconciler.Reconciler
	notifier   ports.Notifier
	riskLimits domain.RiskLimits
	cfg        Config

	risk domain.RiskState
}

func New(
	log *slog.Logger,
	store ports.Store,
	pairingProc *pairing.Processor,
	engine *executor.Engine,
	recon *reconciler.Reconciler,
	notifier ports.Notifier,
	riskLimits domain.RiskLimits,
	initialRisk domain.RiskState,
	cfg Config,
) *Worker {
	return &Worker{
		log:        log,
		store:      store,
		pairing:    pairingProc,
		engine:     engine,
		reconciler: recon,
		notifier:   notifier,
		riskLimits: riskLimits,
		cfg:        cfg,
		risk:       initialRisk,
	}
}

// Run executes ticks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.tick(ctx); err != nil {
		w.log.Error("worker: tick failed", "err", err)
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker: stopped")
			return nil
		case <-ticker.C:
			if err := w.tick(ctx); err != nil {
				w.log.Error("worker: tick failed", "err", err)
			}
		}
	}
}

func (w *Worker) tick(ctx context.Context) error {
	start := time.Now()

	if err := w.store.Heartbeat(ctx, "worker", ""); err != nil {
		w.log.Warn("worker: heartbeat failed", "err", err)
	}
	activePairs, err := w.store.CountActivePairs(ctx)
	if err != nil {
		w.log.Warn("worker: count active pairs failed", "err", err)
	}

	pairOutcomes, err := w.pairing.ProcessOnce(ctx, w.cfg.QueuedBatchSize)
	if err != nil {
		return fmt.Errorf("worker.tick: pairing: %w", err)
	}
	w.notifyPairingOutcomes(ctx, pairOutcomes)

	reconOutcomes, err := w.reconciler.Run(ctx, w.cfg.StaleBatchSize)
	if err != nil {
		return fmt.Errorf("worker.tick: reconciler: %w", err)
	}

	filled, failed := w.runExecutor(ctx)

	w.log.Info("worker_tick",
		"active_pairs", activePairs,
		"queued_orders", len(pairOutcomes),
		"reconciled", len(reconOutcomes),
		"filled", filled,
		"failed", failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (w *Worker) notifyPairingOutcomes(ctx context.Context, outcomes []pairing.Outcome) {
	for _, o := range outcomes {
		if o.Status != domain.OrderBlocked || !o.Alerted {
			continue
		}
		key := fmt.Sprintf("%d:%s", o.PairID, o.BlockedReason)
		suppressed, next := w.risk.ShouldSuppressBlockAlert(key, time.Now().Unix(), w.cfg.BlockAlertCooldownSec)
		w.risk = next
		if suppressed {
			continue
		}
		w.notifier.NotifyBlocked(ctx, o.PairID, o.TradeSignalID, o.RequestedNotional, o.BlockedReason)
	}
}

func (w *Worker) runExecutor(ctx context.Context) (filled, failed int) {
	queued, err := w.store.ListQueuedOrders(ctx, w.cfg.QueuedBatchSize)
	if err != nil {
		w.log.Error("worker: list queued orders failed", "err", err)
		return 0, 0
	}

	for _, o := range queued {
		decision := domain.CheckPreTrade(o.AdjustedNotionalUSDC, w.riskLimits, w.risk)
		if !decision.Allowed {
			w.log.Debug("worker: risk guard denied, leaving order queued", "order_id", o.ID, "reason", decision.Reason)
			continue
		}

		// Carry BlockedReason over so a repriced order keeps its
		// reprice_after_timeout marker while it is sent.
		if err := w.store.SetStatus(ctx, o.ID, domain.OrderSent, o.BlockedReason); err != nil {
			w.log.Error("worker: transition to sent failed", "order_id", o.ID, "err", err)
			continue
		}

		outcome := w.engine.Run(ctx, o)
		w.applyOutcome(ctx, o, outcome, &filled, &failed)
	}
	return filled, failed
}

func (w *Worker) applyOutcome(ctx context.Context, o ports.QueuedOrder, outcome executor.Outcome, filled, failed *int) {
	switch outcome.Status {
	case domain.OrderFilled:
		if err := w.store.SetExecutorRef(ctx, o.ID, outcome.ExecutorRef); err != nil {
			w.log.Error("worker: set executor ref failed", "order_id", o.ID, "err", err)
		}
		if err := w.store.SetStatus(ctx, o.ID, domain.OrderFilled, ""); err != nil {
			w.log.Error("worker: set filled failed", "order_id", o.ID, "err", err)
		}
		chainTx := outcome.ChainTxHash
		w.recordExecution(ctx, o, domain.ExecutionFilled, &outcome.ExecutedPrice, &o.AdjustedNotionalUSDC, &chainTx, nil)
		w.consumeBudget(ctx, o)
		w.risk = w.risk.ApplyFill(0)
		*filled++
		w.notifier.NotifyFilled(ctx, o.ID, o.PairID, o.FollowerWalletID, string(o.Side), o.Outcome, o.AdjustedNotionalUSDC, chainTx, o.SourceTxHash, o.MarketSlug)

	case domain.OrderSent:
		if err := w.store.SetExecutorRef(ctx, o.ID, outcome.ExecutorRef); err != nil {
			w.log.Error("worker: set executor ref failed", "order_id", o.ID, "err", err)
		}
		w.notifier.NotifySent(ctx, o.ID, o.PairID, o.FollowerWalletID, string(o.Side), o.Outcome, o.AdjustedNotionalUSDC, o.SourceTxHash, o.MarketSlug)

	case domain.OrderFailed:
		if err := w.store.SetStatus(ctx, o.ID, domain.OrderFailed, outcome.FailReason); err != nil {
			w.log.Error("worker: set failed failed", "order_id", o.ID, "err", err)
		}
		w.recordExecution(ctx, o, domain.ExecutionFailed, nil, nil, nil, &outcome.FailReason)
		var tripped bool
		w.risk, tripped = w.risk.ApplyExecFailure(w.riskLimits)
		*failed++
		w.notifier.NotifyFailed(ctx, o.ID, o.PairID, o.FollowerWalletID, string(o.Side), o.Outcome, o.AdjustedNotionalUSDC, outcome.FailReason, o.SourceTxHash, o.MarketSlug)
		if tripped {
			w.notifier.NotifyKillSwitch(ctx, "consecutive_exec_failures_reached")
		}
	}
}

func (w *Worker) recordExecution(ctx context.Context, o ports.QueuedOrder, status domain.ExecutionStatus, price, notional *float64, chainTx, failReason *string) {
	exec := domain.Execution{
		MirrorOrderID:        o.ID,
		PairID:               o.PairID,
		FollowerWalletID:     o.FollowerWalletID,
		ExecutedSide:         o.Side,
		ExecutedOutcome:      o.Outcome,
		ExecutedPrice:        price,
		ExecutedNotionalUSDC: notional,
		ChainTxHash:          chainTx,
		Status:               status,
		FailReason:           failReason,
	}
	if err := w.store.CreateExecution(ctx, exec); err != nil {
		w.log.Error("worker: record execution failed", "order_id", o.ID, "err", err)
	}
}

func (w *Worker) consumeBudget(ctx context.Context, o ports.QueuedOrder) {
	if o.Side != domain.SideBuy {
		return
	}
	if err := w.store.ConsumeBudget(ctx, o.FollowerWalletID, o.AdjustedNotionalUSDC); err != nil {
		w.log.Error("worker: consume budget failed", "wallet_id", o.FollowerWalletID, "err", err)
	}
}
