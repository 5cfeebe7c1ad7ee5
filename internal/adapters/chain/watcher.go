// Package chain implements the ChainWatcher: it tails OrderFilled events on
// the configured CLOB exchange contracts, detects trades involving a watched
// source wallet, and writes them as domain.TradeSignal rows. The adaptive
// polling/backoff state machine and the per-tick log are a direct port of
// worker/source_watcher.py's run() loop.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/alejandrodnm/mirrorcore/internal/domain"
	"github.com/alejandrodnm/mirrorcore/internal/ports"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EventSignature is the CTFExchange OrderFilled event this watcher decodes.
const EventSignature = "OrderFilled(bytes32,address,address,uint256,uint256,uint256,uint256,uint256)"

// Topic0 returns the keccak256 topic hash for EventSignature.
func Topic0() string {
	return crypto.Keccak256Hash([]byte(EventSignature)).Hex()
}

var orderFilledDataArgs abi.Arguments

func init() {
	uint256Type, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(fmt.Sprintf("chain: build uint256 abi type: %v", err))
	}
	orderFilledDataArgs = abi.Arguments{
		{Type: uint256Type}, {Type: uint256Type}, {Type: uint256Type}, {Type: uint256Type}, {Type: uint256Type},
	}
}

// Store is the narrow persistence surface ChainWatcher needs.
type Store interface {
	ports.SignalStore
	ListActiveSourceAddresses(ctx context.Context) ([]string, error)
	GetWatcherState(ctx context.Context, key string) (domain.WatcherState, bool, error)
	SaveWatcherState(ctx context.Context, s domain.WatcherState) error
	Heartbeat(ctx context.Context, component string, extra string) error
}

// Config holds ChainWatcher's static parameters, sourced from config.WatcherConfig.
type Config struct {
	ChainID              int64
	Exchanges            []string // checksum addresses
	Confirmations        int64
	MaxBlockRange        int64
	MaxLagBlocks         int64
	PollMinSeconds       int
	PollMaxSeconds       int
	BackoffSlowMs        int
	BackoffErrorStreak   int
	RecoveryHealthyTicks int
}

// StateKey is the watcher_state row this watcher persists pacing under.
const StateKey = "watcher_last_block"

// ChainWatcher tails OrderFilled logs and ingests matching trades as signals.
type ChainWatcher struct {
	log    *slog.Logger
	source ports.ChainLogSource
	store  Store
	cfg    Config
}

func New(log *slog.Logger, source ports.ChainLogSource, store Store, cfg Config) *ChainWatcher {
	if cfg.PollMinSeconds < 1 {
		cfg.PollMinSeconds = 1
	}
	if cfg.PollMaxSeconds < cfg.PollMinSeconds {
		cfg.PollMaxSeconds = cfg.PollMinSeconds
	}
	return &ChainWatcher{log: log, source: source, store: store, cfg: cfg}
}

// TickResult summarizes one Tick call, for logging and tests.
type TickResult struct {
	FromBlock       int64
	ToBlock         int64
	LogsSeen        int
	SignalsInserted int
	LagJumped       bool
	Skipped         bool
	Err             error
}

// Run loops Tick with the adaptive poll/backoff cadence until ctx is canceled.
func (w *ChainWatcher) Run(ctx context.Context) error {
	state, _, err := w.store.GetWatcherState(ctx, StateKey)
	if err != nil {
		return fmt.Errorf("chain.Run: load state: %w", err)
	}
	if state.CurrentPollSeconds < w.cfg.PollMinSeconds || state.CurrentPollSeconds > w.cfg.PollMaxSeconds {
		state.CurrentPollSeconds = w.cfg.PollMinSeconds
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		tickStart := time.Now()
		result := w.Tick(ctx, &state)

		tickMs := int(time.Since(tickStart).Milliseconds())
		isSlow := tickMs >= w.cfg.BackoffSlowMs

		if result.Err != nil {
			state.ErrorStreak++
			state.HealthyStreak = 0
			w.log.Error("watcher_error", "err", result.Err)
		} else {
			state.ErrorStreak = 0
			if isSlow {
				state.HealthyStreak = 0
			} else {
				state.HealthyStreak++
			}
		}

		switch {
		case result.Err != nil || isSlow:
			if state.ErrorStreak >= w.cfg.BackoffErrorStreak || isSlow {
				state.CurrentPollSeconds = w.cfg.PollMaxSeconds
			}
		case state.CurrentPollSeconds == w.cfg.PollMaxSeconds && state.HealthyStreak >= w.cfg.RecoveryHealthyTicks:
			state.CurrentPollSeconds = w.cfg.PollMinSeconds
		}

		if err := w.store.SaveWatcherState(ctx, state); err != nil {
			w.log.Error("watcher_state_save_error", "err", err)
		}

		w.log.Info("watcher_perf",
			"tick_ms", tickMs, "poll_seconds", state.CurrentPollSeconds,
			"error_streak", state.ErrorStreak, "healthy_streak", state.HealthyStreak)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(state.CurrentPollSeconds) * time.Second):
		}
	}
}

// Tick performs one poll-and-ingest cycle, advancing state in place.
func (w *ChainWatcher) Tick(ctx context.Context, state *domain.WatcherState) TickResult {
	if err := w.store.Heartbeat(ctx, "watcher", fmt.Sprintf("poll_seconds=%d", state.CurrentPollSeconds)); err != nil {
		w.log.Warn("watcher_heartbeat_error", "err", err)
	}

	latest, err := w.source.BlockNumber(ctx)
	if err != nil {
		return TickResult{Err: fmt.Errorf("chain.Tick: block number: %w", err)}
	}
	target := int64(latest) - w.cfg.Confirmations
	if target < 0 {
		target = 0
	}

	if state.LastProcessedBlock == 0 {
		state.LastProcessedBlock = target - w.cfg.MaxBlockRange
		if state.LastProcessedBlock < 0 {
			state.LastProcessedBlock = 0
		}
	}

	if target <= state.LastProcessedBlock {
		return TickResult{Skipped: true}
	}

	lag := target - state.LastProcessedBlock
	if lag > w.cfg.MaxLagBlocks {
		w.log.Warn("watcher_lag_jump", "target", target, "lag_blocks", lag)
		state.LastProcessedBlock = target
		return TickResult{LagJumped: true}
	}

	watch, err := w.store.ListActiveSourceAddresses(ctx)
	if err != nil {
		return TickResult{Err: fmt.Errorf("chain.Tick: list watched addresses: %w", err)}
	}
	watchSet := make(map[string]bool, len(watch))
	for _, a := range watch {
		watchSet[strings.ToLower(a)] = true
	}
	if len(watchSet) == 0 {
		state.LastProcessedBlock = target
		return TickResult{Skipped: true}
	}

	fromBlock := state.LastProcessedBlock + 1
	toBlock := target
	if toBlock > state.LastProcessedBlock+w.cfg.MaxBlockRange {
		toBlock = state.LastProcessedBlock + w.cfg.MaxBlockRange
	}

	logs, err := w.source.FilterLogs(ctx, fromBlock, toBlock, w.cfg.Exchanges, Topic0())
	if err != nil {
		return TickResult{Err: fmt.Errorf("chain.Tick: filter logs: %w", err)}
	}

	inserted := 0
	for _, lg := range logs {
		n, err := w.ingestLog(ctx, lg, watchSet)
		if err != nil {
			w.log.Error("watcher_parse_error", "err", err, "tx_hash", lg.TxHash)
			continue
		}
		inserted += n
	}

	state.LastProcessedBlock = toBlock
	w.log.Info("watcher_tick",
		"from_block", fromBlock, "to_block", toBlock, "logs", len(logs),
		"inserted_signals", inserted, "watched_wallets", len(watchSet))

	return TickResult{FromBlock: fromBlock, ToBlock: toBlock, LogsSeen: len(logs), SignalsInserted: inserted}
}

func (w *ChainWatcher) ingestLog(ctx context.Context, lg ports.ChainLog, watch map[string]bool) (int, error) {
	if len(lg.Topics) < 4 {
		return 0, nil
	}
	decoded, err := orderFilledDataArgs.Unpack(lg.Data)
	if err != nil {
		return 0, fmt.Errorf("unpack event data: %w", err)
	}
	makerAssetID := decoded[0].(*big.Int)
	takerAssetID := decoded[1].(*big.Int)
	makerAmt := decoded[2].(*big.Int)
	takerAmt := decoded[3].(*big.Int)

	maker := strings.ToLower(topicToAddress(lg.Topics[2]).Hex())
	taker := strings.ToLower(topicToAddress(lg.Topics[3]).Hex())

	inserted := 0
	for _, addr := range []string{maker, taker} {
		if !watch[addr] {
			continue
		}
		detected := detectTradeForAddress(addr, maker, taker, makerAssetID, takerAssetID, makerAmt, takerAmt)
		if detected == nil {
			continue
		}
		sig := domain.TradeSignal{
			ChainID:             w.cfg.ChainID,
			TxHash:              lg.TxHash,
			LogIndex:            lg.LogIndex,
			BlockNumber:         lg.BlockNumber,
			SourceWalletAddress: addr,
			Side:                detected.side,
			TokenID:             detected.tokenID,
			SourceNotionalUSDC:  detected.usdcNotional,
			SourcePrice:         detected.price,
			ObservedAt:          time.Now().UTC(),
		}
		_, created, err := w.store.CreateSignal(ctx, sig)
		if err != nil {
			return inserted, fmt.Errorf("create signal: %w", err)
		}
		if created {
			inserted++
		}
	}
	return inserted, nil
}

func topicToAddress(topicHex string) common.Address {
	h := strings.TrimPrefix(topicHex, "0x")
	if len(h) < 40 {
		return common.Address{}
	}
	return common.HexToAddress("0x" + h[len(h)-40:])
}

type detectedTrade struct {
	side         domain.Side
	tokenID      string
	usdcNotional float64
	price        *float64
}

// detectTradeForAddress ports worker/source_watcher.py's
// _detect_trade_for_address: one leg of an OrderFilled event is always the
// USDC asset (assetId 0); the other leg is the outcome token.
func detectTradeForAddress(addr, maker, taker string, makerAssetID, takerAssetID, makerAmt, takerAmt *big.Int) *detectedTrade {
	makerInWatch := addr == maker
	takerInWatch := addr == taker
	if !makerInWatch && !takerInWatch {
		return nil
	}

	var usdc, shares float64
	var tokenID string
	var side domain.Side

	zero := big.NewInt(0)
	switch {
	case makerAssetID.Cmp(zero) == 0:
		tokenID = takerAssetID.String()
		usdc = microToFloat(makerAmt)
		shares = microToFloat(takerAmt)
		if makerInWatch {
			side = domain.SideBuy
		} else {
			side = domain.SideSell
		}
	case takerAssetID.Cmp(zero) == 0:
		tokenID = makerAssetID.String()
		usdc = microToFloat(takerAmt)
		shares = microToFloat(makerAmt)
		if makerInWatch {
			side = domain.SideSell
		} else {
			side = domain.SideBuy
		}
	default:
		return nil
	}

	if usdc <= 0 {
		return nil
	}
	var price *float64
	if shares > 0 {
		p := usdc / shares
		price = &p
	}
	return &detectedTrade{side: side, tokenID: tokenID, usdcNotional: usdc, price: price}
}

// microToFloat converts a raw 6-decimal on-chain integer amount to a float.
func microToFloat(amt *big.Int) float64 {
	f := new(big.Float).SetInt(amt)
	f.Quo(f, big.NewFloat(1_000_000))
	out, _ := f.Float64()
	return out
}
