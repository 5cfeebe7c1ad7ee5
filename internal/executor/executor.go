// Package executor turns one Queued MirrorOrder into a priced, quantized,
// signed venue order: the live counterpart of executor.py's build_executor
// output, generalized from a single StubExecutor/PolymarketLiveExecutor pair
// into an Engine that drives whichever ports.VenueExecutor it's given.
package executor

import (
	"context"
	"log/slog"
	"strings"

	"github.com/alejandrodnm/mirrorcore/internal/domain"
	"github.com/alejandrodnm/mirrorcore/internal/ports"
	"github.com/alejandrodnm/mirrorcore/internal/pricing"
)

// Outcome is what the Worker does with an order after Engine.Run: the status
// transition to persist plus whatever Execution/notification data goes with
// it.
type Outcome struct {
	Status        domain.OrderStatus
	FailReason    string
	ExecutorRef   string
	ChainTxHash   string
	ExecutedPrice float64
	Filled        bool
}

// Engine prices, quantizes, and submits queued orders against a venue.
type Engine struct {
	log   *slog.Logger
	venue ports.VenueExecutor
}

func New(log *slog.Logger, venue ports.VenueExecutor) *Engine {
	return &Engine{log: log, venue: venue}
}

// Run prices and submits order o, retrying size quantization at 5, 4, then 3
// decimal places if the venue rejects the order for invalid amounts.
func (e *Engine) Run(ctx context.Context, o ports.QueuedOrder) Outcome {
	book, err := e.venue.OrderBook(ctx, o.TokenID)
	tick := 0.001
	if err != nil {
		e.log.Warn("executor: order book fetch failed, using fallback tick", "pair_id", o.PairID, "token_id", o.TokenID, "err", err)
	} else {
		tick = book.TickSize
		if tick <= 0 {
			tick = 0.001
		}
	}

	refPrice, ok := referencePrice(o, book, tick)
	if !ok {
		return Outcome{Status: domain.OrderFailed, FailReason: "no_reference_price"}
	}
	alignedPrice := pricing.AlignPrice(refPrice, tick)

	notional := o.AdjustedNotionalUSDC
	if o.Side == domain.SideBuy {
		notional = pricing.RoundHalfUp2(notional)
	}

	var lastErr error
	for _, precision := range pricing.SizePrecisions() {
		size, ok := pricing.QuantizeSize(notional, alignedPrice, precision)
		if !ok {
			continue
		}

		placed, err := e.venue.PlaceOrder(ctx, o.KeyRef, domain.PlaceOrderRequest{
			TokenID: o.TokenID,
			Side:    o.Side,
			Price:   alignedPrice,
			Size:    size,
		})
		if err == nil {
			if placed.Filled {
				return Outcome{
					Status:        domain.OrderFilled,
					ExecutorRef:   placed.ExecutorRef,
					ChainTxHash:   placed.ChainTxHash,
					ExecutedPrice: alignedPrice,
					Filled:        true,
				}
			}
			return Outcome{
				Status:      domain.OrderSent,
				ExecutorRef: placed.ExecutorRef,
			}
		}

		lastErr = err
		if !isInvalidAmounts(err) {
			return Outcome{Status: domain.OrderFailed, FailReason: "exchange_rejected:" + err.Error()}
		}
		e.log.Debug("executor: invalid amounts, retrying at lower precision", "pair_id", o.PairID, "precision", precision)
	}

	reason := "invalid_amounts"
	if lastErr != nil {
		reason = "exchange_rejected:" + lastErr.Error()
	}
	return Outcome{Status: domain.OrderFailed, FailReason: reason}
}

// referencePrice implements the §4.4 step-3 formula: BUY anchors off the
// source trade's own price when known, widening the offset to 0.10 on a
// reprice retry; SELL anchors one tick below the source price or the best
// ask, and at the best bid when only bids are present.
func referencePrice(o ports.QueuedOrder, book domain.OrderBook, tick float64) (float64, bool) {
	delta := tick
	if o.Side == domain.SideBuy && o.BlockedReason == domain.RepriceAfterTimeoutReason {
		delta = 0.10
	}

	if o.Side == domain.SideBuy {
		if o.SourcePrice != nil {
			return *o.SourcePrice + delta, true
		}
		if bid := book.BestBid(); bid > 0 {
			return bid + delta, true
		}
		if ask := book.BestAsk(); ask > 0 {
			return ask, true
		}
		return 0, false
	}

	if o.SourcePrice != nil {
		return *o.SourcePrice - tick, true
	}
	if ask := book.BestAsk(); ask > 0 {
		return ask - tick, true
	}
	if bid := book.BestBid(); bid > 0 {
		return bid, true
	}
	return 0, false
}

func isInvalidAmounts(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "invalid amounts")
}
