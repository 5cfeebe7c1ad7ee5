package ports

import (
	"context"

	"github.com/alejandrodnm/mirrorcore/internal/domain"
)

// SignalStore is the durable, ordered log of TradeSignals. CreateSignal must
// be at-most-once on (ChainID, SourceWalletAddress, TxHash, LogIndex) —
// implementations use INSERT OR IGNORE and report whether a row was created.
type SignalStore interface {
	// CreateSignal inserts s if its unique key hasn't been seen before.
	// Returns (id, true, nil) on a fresh insert, (0, false, nil) on a dup.
	CreateSignal(ctx context.Context, s domain.TradeSignal) (id int64, inserted bool, err error)

	// ListUnmirroredSignals returns up to limit (pair, signal) candidates that
	// have no MirrorOrder yet, restricted to signals at or after the pair's
	// creation time, oldest signal first.
	ListUnmirroredSignals(ctx context.Context, limit int) ([]UnmirroredCandidate, error)
}

// UnmirroredCandidate is one row of the SignalStore/PairStore join that
// Pairing/Policy consumes — everything it needs to price and filter a
// candidate order without a second round-trip.
type UnmirroredCandidate struct {
	PairID           int64
	TradeSignalID    int64
	FollowerWalletID int64
	FollowerAddress  string
	KeyRef           string
	BudgetUSDC       float64
	MinOrderUSDC     float64
	MaxOrderUSDC     *float64
	MaxSlippageBps   int
	Mode             domain.PairMode
	Sizing           domain.SizingMode

	Side                Side
	TokenID             string
	Outcome             *string
	MarketSlug          *string
	SourceNotionalUSDC  float64
	SourcePrice         *float64
	SourcePortfolioUSDC *float64
	SourceTxHash        string
}

// Side re-exports domain.Side so callers importing only ports don't need a
// second import for this one field's type.
type Side = domain.Side

// MirrorOrderStore owns every MirrorOrder row and its attached Executions.
type MirrorOrderStore interface {
	// CreateOrder inserts a new MirrorOrder in status Queued or Blocked.
	// (PairID, TradeSignalID) is unique; a duplicate call is a no-op that
	// returns the existing id.
	CreateOrder(ctx context.Context, o domain.MirrorOrder) (int64, error)

	// ListQueuedOrders returns up to limit orders in status Queued, along
	// with the data the Executor needs to act, oldest-created first.
	ListQueuedOrders(ctx context.Context, limit int) ([]QueuedOrder, error)

	// ListStaleSentOrders returns orders in status Sent whose UpdatedAt is
	// older than maxAgeSeconds.
	ListStaleSentOrders(ctx context.Context, maxAgeSeconds int64, limit int) ([]QueuedOrder, error)

	// SetStatus performs a single-transaction status update. reason is
	// written to the order's BlockedReason whatever the target status, and
	// "" clears it. The transition is not checked against
	// domain.CanTransition.
	SetStatus(ctx context.Context, orderID int64, status domain.OrderStatus, reason string) error

	// SetExecutorRef records the venue order ID. Called at most once per
	// order except when the reconciler clears it back to "" for a reprice.
	SetExecutorRef(ctx context.Context, orderID int64, ref string) error

	// HasFilledBuyForToken reports whether (pairID, tokenID) has a prior
	// filled BUY mirror order — the sell-inventory rule's source of truth.
	HasFilledBuyForToken(ctx context.Context, pairID int64, tokenID string) (bool, error)

	// HasRecentBalanceFailure reports whether pairID had a failed execution
	// tagged balance/allowance within the last withinSeconds.
	HasRecentBalanceFailure(ctx context.Context, pairID int64, withinSeconds int64) (bool, error)

	// CreateExecution records a fill/failure against a mirror order.
	CreateExecution(ctx context.Context, e domain.Execution) error
}

// QueuedOrder is one row returned by ListQueuedOrders/ListStaleSentOrders —
// everything the Executor or Reconciler needs without a further join.
type QueuedOrder struct {
	domain.MirrorOrder
	PairMode          domain.PairMode
	FollowerWalletID  int64
	FollowerAddress   string
	KeyRef            string
	BudgetUSDC        float64
	Side              domain.Side
	TokenID           string
	Outcome           *string
	SourcePrice       *float64
	SourceTxHash      string
	MarketSlug        *string
	MaxSlippageBps    int
}

// WalletStore manages Wallet rows, including the subset used as watched
// source addresses.
type WalletStore interface {
	GetWallet(ctx context.Context, id int64) (domain.Wallet, error)
	ListActiveSourceAddresses(ctx context.Context) ([]string, error)

	// ConsumeBudget decrements a follower wallet's budget by amount, clamped
	// at zero, after a filled Execution. amount must be >= 0.
	ConsumeBudget(ctx context.Context, walletID int64, amount float64) error
}

// PairStore manages Pair rows.
type PairStore interface {
	GetPair(ctx context.Context, id int64) (domain.Pair, error)
	CountActivePairs(ctx context.Context) (int, error)
}

// WatcherStateStore persists ChainWatcher pacing/progress across restarts.
type WatcherStateStore interface {
	GetWatcherState(ctx context.Context, key string) (domain.WatcherState, bool, error)
	SaveWatcherState(ctx context.Context, s domain.WatcherState) error
}

// AlertStore is the append-only AlertLedger.
type AlertStore interface {
	RecordAlert(ctx context.Context, a domain.AlertLedger) error
}

// VaultStore persists encrypted key-ref material. The Vault capability
// (adapters/vault) wraps this with the encryption scheme; VaultStore is the
// plain row-level CRUD it needs.
type VaultStore interface {
	UpsertVaultKey(ctx context.Context, keyRef string, blob VaultBlob) error
	GetVaultKey(ctx context.Context, keyRef string) (VaultBlob, bool, error)
	ListVaultKeys(ctx context.Context) ([]VaultKeyMeta, error)
}

// VaultBlob is the encrypted-at-rest representation of one vault secret.
type VaultBlob struct {
	CiphertextB64 string
	SaltB64       string
	NonceB64      string
	MacB64        string
}

// VaultKeyMeta is what `vault list` prints — never the secret material.
type VaultKeyMeta struct {
	KeyRef    string
	Status    string
	CreatedAt int64
	UpdatedAt int64
}

// HeartbeatStore records liveness for long-running tasks, supplementing the
// concurrency model's single-instance lock with an observable surface.
type HeartbeatStore interface {
	Heartbeat(ctx context.Context, component string, extra string) error
}

// Store aggregates every persistence capability the worker/watcher/vault
// binaries need. Adapters may implement it on a single *sql.DB-backed type;
// the pipeline packages depend only on the narrower interfaces above.
type Store interface {
	SignalStore
	MirrorOrderStore
	WalletStore
	PairStore
	WatcherStateStore
	AlertStore
	VaultStore
	HeartbeatStore
	Close() error
}
