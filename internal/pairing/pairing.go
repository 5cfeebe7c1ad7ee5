// Package pairing runs the Pairing/Policy stage: for every (pair, signal)
// candidate without a MirrorOrder yet, it applies an ordered filter chain —
// market policy, minimum source notional, balance/allowance cooldown,
// sell-without-prior-buy, then the Sizer — and persists exactly one
// MirrorOrder, either Queued with an adjusted notional or Blocked with a
// reason. It is a direct port of worker/signal_worker.py's process_once.
package pairing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/mirrorcore/internal/domain"
	"github.com/alejandrodnm/mirrorcore/internal/policy"
	"github.com/alejandrodnm/mirrorcore/internal/ports"
	"github.com/alejandrodnm/mirrorcore/internal/sizer"
)

// Config holds the static thresholds the filter chain checks against.
type Config struct {
	MarketMinBuyUSDC           float64
	MinSourceNotionalUSDC      float64
	BalanceFailCooldownSeconds int64
}

// Store is the narrow persistence surface Processor needs.
type Store interface {
	ports.SignalStore
	ports.MirrorOrderStore
}

// Processor runs one batch of the filter chain per ProcessOnce call.
type Processor struct {
	log        *slog.Logger
	store      Store
	marketMeta policy.MarketMetaProvider // may be nil
	cfg        Config
}

func New(log *slog.Logger, store Store, marketMeta policy.MarketMetaProvider, cfg Config) *Processor {
	return &Processor{log: log, store: store, marketMeta: marketMeta, cfg: cfg}
}

// Outcome is one candidate's filter-chain result, returned for the worker to
// log and, for alerted blocks, hand to the Notifier.
type Outcome struct {
	PairID            int64
	TradeSignalID     int64
	OrderID           int64
	RequestedNotional float64
	Status            domain.OrderStatus
	BlockedReason     string
	Alerted           bool
}

// ProcessOnce pulls up to limit unmirrored candidates and creates a
// MirrorOrder for each. Returns one Outcome per candidate processed.
func (p *Processor) ProcessOnce(ctx context.Context, limit int) ([]Outcome, error) {
	candidates, err := p.store.ListUnmirroredSignals(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("pairing.ProcessOnce: list candidates: %w", err)
	}

	outcomes := make([]Outcome, 0, len(candidates))
	for _, c := range candidates {
		o, err := p.processOne(ctx, c)
		if err != nil {
			p.log.Error("pairing_process_error", "pair_id", c.PairID, "trade_signal_id", c.TradeSignalID, "err", err)
			continue
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

func (p *Processor) processOne(ctx context.Context, c ports.UnmirroredCandidate) (Outcome, error) {
	out := Outcome{PairID: c.PairID, TradeSignalID: c.TradeSignalID, RequestedNotional: c.SourceNotionalUSDC}

	if reason, blocked := p.marketPolicyBlock(ctx, c); blocked {
		return p.block(ctx, c, out, reason, false)
	}

	if c.SourceNotionalUSDC < p.cfg.MinSourceNotionalUSDC {
		reason := fmt.Sprintf("source_notional_below_threshold:%.2f", p.cfg.MinSourceNotionalUSDC)
		return p.block(ctx, c, out, reason, false)
	}

	recentFailure, err := p.store.HasRecentBalanceFailure(ctx, c.PairID, p.cfg.BalanceFailCooldownSeconds)
	if err != nil {
		return Outcome{}, fmt.Errorf("check balance cooldown: %w", err)
	}
	if recentFailure {
		return p.block(ctx, c, out, "balance_allowance_cooldown", false)
	}

	if c.Side == domain.SideSell {
		hasBuy, err := p.store.HasFilledBuyForToken(ctx, c.PairID, c.TokenID)
		if err != nil {
			return Outcome{}, fmt.Errorf("check prior buy: %w", err)
		}
		if !hasBuy {
			return p.block(ctx, c, out, "no_prior_buy_inventory_for_sell", false)
		}
	}

	result := sizer.Size(sizer.Input{
		SourceNotionalUSDC:  c.SourceNotionalUSDC,
		SourcePortfolioUSDC: c.SourcePortfolioUSDC,
		SourcePrice:         c.SourcePrice,
		FollowerBudgetUSDC:  c.BudgetUSDC,
		MinOrderUSDC:        c.MinOrderUSDC,
		MaxOrderUSDC:        c.MaxOrderUSDC,
		MarketMinOrderUSDC:  p.cfg.MarketMinBuyUSDC,
	})
	if result.BlockedReason != "" {
		return p.block(ctx, c, out, result.BlockedReason, true)
	}

	order := domain.MirrorOrder{
		PairID:                c.PairID,
		TradeSignalID:         c.TradeSignalID,
		RequestedNotionalUSDC: c.SourceNotionalUSDC,
		AdjustedNotionalUSDC:  result.AdjustedNotionalUSDC,
		Status:                domain.OrderQueued,
	}
	id, err := p.store.CreateOrder(ctx, order)
	if err != nil {
		return Outcome{}, fmt.Errorf("create queued order: %w", err)
	}
	out.OrderID = id
	out.Status = domain.OrderQueued
	out.RequestedNotional = result.AdjustedNotionalUSDC
	return out, nil
}

func (p *Processor) block(ctx context.Context, c ports.UnmirroredCandidate, out Outcome, reason string, alerted bool) (Outcome, error) {
	order := domain.MirrorOrder{
		PairID:        c.PairID,
		TradeSignalID: c.TradeSignalID,
		Status:        domain.OrderBlocked,
		BlockedReason: reason,
	}
	id, err := p.store.CreateOrder(ctx, order)
	if err != nil {
		return Outcome{}, fmt.Errorf("create blocked order: %w", err)
	}
	out.OrderID = id
	out.Status = domain.OrderBlocked
	out.BlockedReason = reason
	out.Alerted = alerted
	return out, nil
}

func (p *Processor) marketPolicyBlock(ctx context.Context, c ports.UnmirroredCandidate) (string, bool) {
	if p.marketMeta == nil {
		return "", false
	}
	meta, found, err := p.marketMeta.MarketMeta(ctx, c.TokenID)
	if err != nil {
		p.log.Warn("market_meta_lookup_error", "token_id", c.TokenID, "err", err)
		return "", false
	}
	if !found {
		return "", false
	}
	return policy.MarketPolicyBlockReason(meta)
}
