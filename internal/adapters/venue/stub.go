// Package venue implements ports.VenueExecutor: a deterministic Stub and a
// Live CLOB executor, the split worker/executor.py's build_executor factory
// makes between StubExecutor and PolymarketLiveExecutor. cmd/worker picks
// one of them for the whole process from the executor_mode setting; a
// pair's mode does not select the executor.
package venue

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/alejandrodnm/mirrorcore/internal/domain"
)

// Stub simulates fills deterministically from the order's own parameters, so
// the same (token, price, size) always produces the same outcome without any
// network calls. It ports StubExecutor's slippage/rpc-error simulation; the
// budget check the original runs against order_id is dropped here since the
// Sizer already guarantees AdjustedNotionalUSDC fits the follower's budget
// before an order ever reaches the Executor.
type Stub struct {
	marketMinOrderUSDC float64
	maxSlippageBps     int
}

func NewStub(marketMinOrderUSDC float64, maxSlippageBps int) *Stub {
	return &Stub{marketMinOrderUSDC: marketMinOrderUSDC, maxSlippageBps: maxSlippageBps}
}

func (s *Stub) PlaceOrder(ctx context.Context, keyRef string, req domain.PlaceOrderRequest) (domain.PlacedOrder, error) {
	seed := stubSeed(req.TokenID, req.Price, req.Size)

	simulatedSlippageBps := int(100 + seed%401)
	if simulatedSlippageBps > s.maxSlippageBps {
		return domain.PlacedOrder{}, fmt.Errorf("slippage_exceeded: %d bps", simulatedSlippageBps)
	}
	if seed%11 == 0 {
		return domain.PlacedOrder{}, errors.New("rpc_error")
	}

	ref := fmt.Sprintf("stub-order-%d", seed)
	return domain.PlacedOrder{ExecutorRef: ref, ChainTxHash: ref, Filled: true}, nil
}

func (s *Stub) CancelOrder(ctx context.Context, executorRef string) (domain.CancelResult, error) {
	return domain.CancelResult{Canceled: true}, nil
}

// OrderBook returns a synthetic two-sided book centered on 0.50 — enough for
// the reference-price/tick-alignment math the Executor exercises in dry runs.
func (s *Stub) OrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	return domain.OrderBook{
		TokenID:  tokenID,
		TickSize: 0.01,
		Bids:     []domain.BookEntry{{Price: 0.49, Size: 1000}},
		Asks:     []domain.BookEntry{{Price: 0.51, Size: 1000}},
	}, nil
}

func (s *Stub) MarketMinOrderUSDC() float64 {
	return s.marketMinOrderUSDC
}

func stubSeed(tokenID string, price, size float64) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%.6f|%.6f", tokenID, price, size)
	return h.Sum64()
}
