// Package reconciler handles stale sent MirrorOrders (spec §4.5): a cancel
// attempt, with a BUY-side reprice once and an optional onchain ground-truth
// short-circuit ported from the teacher's ERC-1155 balanceOf check.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/mirrorcore/internal/domain"
	"github.com/alejandrodnm/mirrorcore/internal/ports"
)

// Store is the subset of persistence the Reconciler needs.
type Store interface {
	ListStaleSentOrders(ctx context.Context, maxAgeSeconds int64, limit int) ([]ports.QueuedOrder, error)
	SetStatus(ctx context.Context, orderID int64, status domain.OrderStatus, reason string) error
	SetExecutorRef(ctx context.Context, orderID int64, ref string) error
	CreateExecution(ctx context.Context, e domain.Execution) error
}

// Outcome is what happened to one stale order during a pass.
type Outcome struct {
	OrderID int64
	Status  domain.OrderStatus
	Reason  string
}

// Reconciler resolves stale sent orders. onchainBalance is an optional
// dependency; when nil, TokenBalance is not consulted and every stale order
// is handled via cancel alone.
type Reconciler struct {
	log             *slog.Logger
	store           Store
	venue           ports.VenueExecutor
	onchainBalance  ports.OnchainBalanceReader // nil disables the ground-truth short-circuit
	notify          ports.Notifier
	cancelAfterSecs int64
}

func New(log *slog.Logger, store Store, venue ports.VenueExecutor, onchainBalance ports.OnchainBalanceReader, notify ports.Notifier, cancelAfterSecs int64) *Reconciler {
	return &Reconciler{log: log, store: store, venue: venue, onchainBalance: onchainBalance, notify: notify, cancelAfterSecs: cancelAfterSecs}
}

// Run processes up to limit stale sent orders, returning what happened to
// each.
func (r *Reconciler) Run(ctx context.Context, limit int) ([]Outcome, error) {
	stale, err := r.store.ListStaleSentOrders(ctx, r.cancelAfterSecs, limit)
	if err != nil {
		return nil, fmt.Errorf("reconciler.Run: list stale: %w", err)
	}

	outcomes := make([]Outcome, 0, len(stale))
	for _, o := range stale {
		outcome := r.processOne(ctx, o)
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func (r *Reconciler) processOne(ctx context.Context, o ports.QueuedOrder) Outcome {
	if o.Side == domain.SideBuy && r.onchainBalance != nil {
		if bal, err := r.onchainBalance.TokenBalance(ctx, o.FollowerAddress, o.TokenID); err == nil && bal > 0 {
			r.log.Info("reconciler: onchain balance confirms fill, skipping cancel", "order_id", o.ID, "token_id", o.TokenID, "balance", bal)
			if err := r.store.SetStatus(ctx, o.ID, domain.OrderFilled, ""); err != nil {
				r.log.Error("reconciler: set filled from onchain balance failed", "order_id", o.ID, "err", err)
				return Outcome{OrderID: o.ID, Status: o.Status, Reason: "set_status_failed"}
			}
			return Outcome{OrderID: o.ID, Status: domain.OrderFilled, Reason: "onchain_balance_confirmed"}
		}
	}

	cancelResult, err := r.venue.CancelOrder(ctx, o.ExecutorRef)
	if err != nil || !cancelResult.Canceled {
		reason := "cancel_failed"
		if err != nil {
			reason = "cancel_failed:" + err.Error()
		} else if cancelResult.Reason != "" {
			reason = "cancel_failed:" + cancelResult.Reason
		}
		if setErr := r.store.SetStatus(ctx, o.ID, domain.OrderFailed, reason); setErr != nil {
			r.log.Error("reconciler: set failed status failed", "order_id", o.ID, "err", setErr)
		}
		r.recordFailure(ctx, o, reason)
		if r.notify != nil {
			r.notify.NotifyFailed(ctx, o.ID, o.PairID, o.FollowerWalletID, string(o.Side), o.Outcome, o.AdjustedNotionalUSDC, reason, o.SourceTxHash, o.MarketSlug)
		}
		return Outcome{OrderID: o.ID, Status: domain.OrderFailed, Reason: reason}
	}

	if o.Side == domain.SideBuy && !o.AlreadyRepriced() {
		if err := r.store.SetExecutorRef(ctx, o.ID, ""); err != nil {
			r.log.Error("reconciler: clear executor ref failed", "order_id", o.ID, "err", err)
		}
		if err := r.store.SetStatus(ctx, o.ID, domain.OrderQueued, domain.RepriceAfterTimeoutReason); err != nil {
			r.log.Error("reconciler: requeue for reprice failed", "order_id", o.ID, "err", err)
			return Outcome{OrderID: o.ID, Status: o.Status, Reason: "set_status_failed"}
		}
		return Outcome{OrderID: o.ID, Status: domain.OrderQueued, Reason: domain.RepriceAfterTimeoutReason}
	}

	if err := r.store.SetStatus(ctx, o.ID, domain.OrderCanceled, "open_order_timeout"); err != nil {
		r.log.Error("reconciler: set canceled failed", "order_id", o.ID, "err", err)
		return Outcome{OrderID: o.ID, Status: o.Status, Reason: "set_status_failed"}
	}
	if r.notify != nil {
		r.notify.NotifyCanceled(ctx, o.ID, o.PairID, o.FollowerWalletID, string(o.Side), "open_order_timeout")
	}
	return Outcome{OrderID: o.ID, Status: domain.OrderCanceled, Reason: "open_order_timeout"}
}

func (r *Reconciler) recordFailure(ctx context.Context, o ports.QueuedOrder, reason string) {
	exec := domain.Execution{
		MirrorOrderID:    o.ID,
		PairID:           o.PairID,
		FollowerWalletID: o.FollowerWalletID,
		ExecutedSide:     o.Side,
		Status:           domain.ExecutionFailed,
		FailReason:       &reason,
	}
	if err := r.store.CreateExecution(ctx, exec); err != nil {
		r.log.Error("reconciler: record failure execution failed", "order_id", o.ID, "err", err)
	}
}
