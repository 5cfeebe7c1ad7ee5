// Package sizer turns a source-wallet trade's notional into a follower-side
// order notional, proportioned to the follower's budget and clamped to the
// pair's configured floor/ceiling. It is a direct port of
// worker/signal_worker.py's _calc_adjusted_notional, with one deliberate
// deviation: where the original's final fallback returns
// max(min(adjusted, budget), 0.0) — a partially-funded order the rest of
// that pipeline never actually sends — this port returns exactly 0 so the
// caller always either queues a fully-funded order or blocks, never a
// silently short one.
package sizer

import "math"

// Input is everything Size needs to compute one candidate's order notional.
type Input struct {
	SourceNotionalUSDC  float64
	SourcePortfolioUSDC *float64 // nil or <=0 disables proportional sizing
	SourcePrice         *float64 // nil or <=0 disables the one-share fallback
	FollowerBudgetUSDC  float64
	MinOrderUSDC        float64
	MaxOrderUSDC        *float64 // nil means no pair-level ceiling
	MarketMinOrderUSDC  float64  // venue absolute floor
}

// Result is Size's verdict: either a fundable notional, or a reason why not.
type Result struct {
	AdjustedNotionalUSDC float64
	BlockedReason        string // "" when AdjustedNotionalUSDC is usable
}

const (
	// ReasonInsufficientForMarketMin fires when the pair's own configured
	// ceiling (MaxOrderUSDC) has clipped the sizing below the venue/pair floor
	// and the follower's budget covers neither that capped notional nor one
	// share at the source price. A budget that covers the capped notional
	// gets it back unblocked, even though it sits below the floor.
	ReasonInsufficientForMarketMin = "insufficient_budget_for_market_min_order"
	// ReasonInsufficientForOneShare fires when the floored notional clears
	// the floor but the follower's budget can't cover it, and can't even
	// cover a single share at the source price.
	ReasonInsufficientForOneShare = "insufficient_budget_for_one_share"
)

// Size computes the adjusted follower notional for one candidate.
//
//  1. Requested = SourceNotionalUSDC, or the proportional share of
//     FollowerBudgetUSDC implied by SourceNotionalUSDC/SourcePortfolioUSDC
//     when the source wallet's portfolio baseline is known.
//  2. Floor at max(MinOrderUSDC, MarketMinOrderUSDC).
//  3. Cap at MaxOrderUSDC, if set.
//  4. If the budget covers the result, return it.
//  5. Otherwise, if the budget covers one share at SourcePrice, return that.
//  6. Otherwise, block.
func Size(in Input) Result {
	requested := in.SourceNotionalUSDC
	if in.SourcePortfolioUSDC != nil && *in.SourcePortfolioUSDC > 0 && in.SourceNotionalUSDC > 0 {
		ratio := in.SourceNotionalUSDC / *in.SourcePortfolioUSDC
		requested = in.FollowerBudgetUSDC * ratio
	}

	minFloor := math.Max(in.MinOrderUSDC, in.MarketMinOrderUSDC)
	adjusted := math.Max(requested, minFloor)
	if in.MaxOrderUSDC != nil {
		adjusted = math.Min(adjusted, *in.MaxOrderUSDC)
	}

	if in.FollowerBudgetUSDC >= adjusted {
		return Result{AdjustedNotionalUSDC: adjusted}
	}

	if in.SourcePrice != nil && *in.SourcePrice > 0 && in.FollowerBudgetUSDC >= *in.SourcePrice {
		return Result{AdjustedNotionalUSDC: *in.SourcePrice}
	}

	if adjusted < minFloor {
		return Result{BlockedReason: ReasonInsufficientForMarketMin}
	}
	return Result{BlockedReason: ReasonInsufficientForOneShare}
}
