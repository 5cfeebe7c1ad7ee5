package ports

import (
	"context"

	"github.com/alejandrodnm/mirrorcore/internal/domain"
)

// VenueExecutor is the capability the Executor/Reconciler act through — the
// Stub and Live implementations in internal/adapters/venue both satisfy it.
type VenueExecutor interface {
	// PlaceOrder signs and submits req, returning the venue's response.
	PlaceOrder(ctx context.Context, keyRef string, req domain.PlaceOrderRequest) (domain.PlacedOrder, error)

	// CancelOrder cancels a previously placed order by venue ref.
	CancelOrder(ctx context.Context, executorRef string) (domain.CancelResult, error)

	// OrderBook returns the current book snapshot for tokenID.
	OrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error)

	// MarketMinOrderUSDC returns the venue's absolute minimum order notional.
	MarketMinOrderUSDC() float64
}

// ChainLogSource abstracts the subset of an RPC client the ChainWatcher
// needs, so watcher logic can be tested without a live ethclient.
type ChainLogSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock int64, addresses []string, topic0 string) ([]ChainLog, error)
}

// ChainLog is the normalized subset of an eth_getLogs row the watcher parses.
type ChainLog struct {
	Topics      []string // hex-encoded, 0x-prefixed
	Data        []byte
	TxHash      string
	LogIndex    int64
	BlockNumber int64
}

// OnchainBalanceReader backs the Reconciler's optional ground-truth check:
// if a sent order's token balance is already positive, it was filled
// regardless of what the CLOB API reports.
type OnchainBalanceReader interface {
	TokenBalance(ctx context.Context, ownerAddress, tokenID string) (float64, error)
}
