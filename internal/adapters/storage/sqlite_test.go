package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/mirrorcore/internal/domain"
	"github.com/alejandrodnm/mirrorcore/internal/ports"
	"github.com/stretchr/testify/require"
)

func vaultBlobFixture() ports.VaultBlob {
	return ports.VaultBlob{
		CiphertextB64: "Y2lwaGVydGV4dA==",
		SaltB64:       "c2FsdA==",
		NonceB64:      "bm9uY2U=",
		MacB64:        "bWFj",
	}
}

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func insertWallet(t *testing.T, s *SQLiteStorage, address string, budget float64, keyRef string) int64 {
	t.Helper()
	now := time.Now().UTC()
	res, err := s.db.Exec(`
		INSERT INTO wallets(address, alias, status, budget_usdc, key_ref, created_at, updated_at)
		VALUES (?, '', 'active', ?, ?, ?, ?)
	`, address, budget, keyRef, now, now)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func insertPair(t *testing.T, s *SQLiteStorage, sourceID, followerID int64) int64 {
	t.Helper()
	now := time.Now().UTC()
	res, err := s.db.Exec(`
		INSERT INTO pairs(source_wallet_id, follower_wallet_id, mode, active, sizing,
			min_order_usdc, max_slippage_bps, max_consecutive_failures, created_at, updated_at)
		VALUES (?, ?, 'live', 1, 'absolute', 1.0, 300, 3, ?, ?)
	`, sourceID, followerID, now, now)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestCreateSignal_IdempotentOnUniqueKey(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	sig := domain.TradeSignal{
		ChainID:             137,
		TxHash:              "0xabc",
		LogIndex:            1,
		BlockNumber:         100,
		SourceWalletAddress: "0xsource",
		Side:                domain.SideBuy,
		TokenID:             "tok1",
		SourceNotionalUSDC:  10,
		ObservedAt:          time.Now().UTC(),
	}

	id1, inserted1, err := s.CreateSignal(ctx, sig)
	require.NoError(t, err)
	require.True(t, inserted1)
	require.NotZero(t, id1)

	id2, inserted2, err := s.CreateSignal(ctx, sig)
	require.NoError(t, err)
	require.False(t, inserted2)
	require.Zero(t, id2)
}

func TestListUnmirroredSignals_ExcludesExistingOrders(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	sourceID := insertWallet(t, s, "0xsource", 0, "")
	followerID := insertWallet(t, s, "0xfollower", 100, "vault://follower")
	pairID := insertPair(t, s, sourceID, followerID)

	sig := domain.TradeSignal{
		ChainID:             137,
		TxHash:              "0xabc",
		LogIndex:            1,
		BlockNumber:         100,
		SourceWalletAddress: "0xsource",
		Side:                domain.SideBuy,
		TokenID:             "tok1",
		SourceNotionalUSDC:  10,
		ObservedAt:          time.Now().UTC(),
	}
	sigID, inserted, err := s.CreateSignal(ctx, sig)
	require.NoError(t, err)
	require.True(t, inserted)

	candidates, err := s.ListUnmirroredSignals(ctx, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, pairID, candidates[0].PairID)
	require.Equal(t, sigID, candidates[0].TradeSignalID)
	require.Equal(t, followerID, candidates[0].FollowerWalletID)

	_, err = s.CreateOrder(ctx, domain.MirrorOrder{
		PairID:               pairID,
		TradeSignalID:        sigID,
		RequestedNotionalUSDC: 10,
		AdjustedNotionalUSDC:  10,
		Status:                domain.OrderQueued,
	})
	require.NoError(t, err)

	candidates, err = s.ListUnmirroredSignals(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, candidates)
}

func TestCreateOrder_UniqueOnPairAndSignal(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	sourceID := insertWallet(t, s, "0xsource", 0, "")
	followerID := insertWallet(t, s, "0xfollower", 100, "vault://follower")
	pairID := insertPair(t, s, sourceID, followerID)

	sig := domain.TradeSignal{
		ChainID: 137, TxHash: "0xabc", LogIndex: 1, BlockNumber: 100,
		SourceWalletAddress: "0xsource", Side: domain.SideBuy, TokenID: "tok1",
		SourceNotionalUSDC: 10, ObservedAt: time.Now().UTC(),
	}
	sigID, _, err := s.CreateSignal(ctx, sig)
	require.NoError(t, err)

	order := domain.MirrorOrder{
		PairID: pairID, TradeSignalID: sigID,
		RequestedNotionalUSDC: 10, AdjustedNotionalUSDC: 10, Status: domain.OrderQueued,
	}
	id1, err := s.CreateOrder(ctx, order)
	require.NoError(t, err)
	require.NotZero(t, id1)

	id2, err := s.CreateOrder(ctx, order)
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestOrderStatusTransitions_PersistAndQuery(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	sourceID := insertWallet(t, s, "0xsource", 0, "")
	followerID := insertWallet(t, s, "0xfollower", 100, "vault://follower")
	pairID := insertPair(t, s, sourceID, followerID)

	sig := domain.TradeSignal{
		ChainID: 137, TxHash: "0xabc", LogIndex: 1, BlockNumber: 100,
		SourceWalletAddress: "0xsource", Side: domain.SideBuy, TokenID: "tok1",
		SourceNotionalUSDC: 10, ObservedAt: time.Now().UTC(),
	}
	sigID, _, err := s.CreateSignal(ctx, sig)
	require.NoError(t, err)

	orderID, err := s.CreateOrder(ctx, domain.MirrorOrder{
		PairID: pairID, TradeSignalID: sigID,
		RequestedNotionalUSDC: 10, AdjustedNotionalUSDC: 10, Status: domain.OrderQueued,
	})
	require.NoError(t, err)

	queued, err := s.ListQueuedOrders(ctx, 10)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	require.Equal(t, orderID, queued[0].ID)
	require.Equal(t, domain.ModeLive, queued[0].PairMode)
	require.Equal(t, followerID, queued[0].FollowerWalletID)

	require.NoError(t, s.SetStatus(ctx, orderID, domain.OrderSent, ""))
	require.NoError(t, s.SetExecutorRef(ctx, orderID, "venue-order-1"))

	queued, err = s.ListQueuedOrders(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, queued)

	require.NoError(t, s.SetStatus(ctx, orderID, domain.OrderFilled, ""))
	require.NoError(t, s.CreateExecution(ctx, domain.Execution{
		MirrorOrderID: orderID, PairID: pairID, FollowerWalletID: followerID,
		ExecutedSide: domain.SideBuy, Status: domain.ExecutionFilled, ExecutedAt: time.Now().UTC(),
	}))

	hasFilled, err := s.HasFilledBuyForToken(ctx, pairID, "tok1")
	require.NoError(t, err)
	require.True(t, hasFilled)
}

func TestListStaleSentOrders_RespectsAgeCutoff(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	sourceID := insertWallet(t, s, "0xsource", 0, "")
	followerID := insertWallet(t, s, "0xfollower", 100, "vault://follower")
	pairID := insertPair(t, s, sourceID, followerID)

	sig := domain.TradeSignal{
		ChainID: 137, TxHash: "0xabc", LogIndex: 1, BlockNumber: 100,
		SourceWalletAddress: "0xsource", Side: domain.SideBuy, TokenID: "tok1",
		SourceNotionalUSDC: 10, ObservedAt: time.Now().UTC(),
	}
	sigID, _, err := s.CreateSignal(ctx, sig)
	require.NoError(t, err)

	orderID, err := s.CreateOrder(ctx, domain.MirrorOrder{
		PairID: pairID, TradeSignalID: sigID,
		RequestedNotionalUSDC: 10, AdjustedNotionalUSDC: 10, Status: domain.OrderQueued,
	})
	require.NoError(t, err)
	require.NoError(t, s.SetStatus(ctx, orderID, domain.OrderSent, ""))

	stale, err := s.ListStaleSentOrders(ctx, 3600, 10)
	require.NoError(t, err)
	require.Empty(t, stale, "order updated moments ago should not be stale against a 1h cutoff")

	stale, err = s.ListStaleSentOrders(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
}

func TestWatcherState_RoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, ok, err := s.GetWatcherState(ctx, "polygon")
	require.NoError(t, err)
	require.False(t, ok)

	ws := domain.WatcherState{
		Key: "polygon", LastProcessedBlock: 1000, ErrorStreak: 0,
		HealthyStreak: 6, CurrentPollSeconds: 5,
	}
	require.NoError(t, s.SaveWatcherState(ctx, ws))

	got, ok, err := s.GetWatcherState(ctx, "polygon")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ws, got)
}

func TestVaultKey_RoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, ok, err := s.GetVaultKey(ctx, "follower-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.UpsertVaultKey(ctx, "follower-1", vaultBlobFixture()))

	blob, ok, err := s.GetVaultKey(ctx, "follower-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, vaultBlobFixture(), blob)

	keys, err := s.ListVaultKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, "follower-1", keys[0].KeyRef)
	require.Equal(t, "active", keys[0].Status)
}
