// Package storage implements ports.Store on top of modernc.org/sqlite, the
// pure-Go driver the teacher repo already depends on. Table names and the
// single-writer connection-pool setting follow
// internal/adapters/storage/sqlite.go's shape; the schema itself is new,
// grounded on ProjectK's backend/repositories/{signals,orders,pairs,vault}.py
// and on spec.md §6's persisted-layout list.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/mirrorcore/internal/domain"
	"github.com/alejandrodnm/mirrorcore/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS wallets (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    address        TEXT NOT NULL UNIQUE,
    alias          TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active','disabled')),
    portfolio_usdc REAL,
    budget_usdc    REAL NOT NULL DEFAULT 0,
    key_ref        TEXT NOT NULL DEFAULT '',
    created_at     DATETIME NOT NULL,
    updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS pairs (
    id                       INTEGER PRIMARY KEY AUTOINCREMENT,
    source_wallet_id         INTEGER NOT NULL REFERENCES wallets(id),
    follower_wallet_id       INTEGER NOT NULL REFERENCES wallets(id),
    mode                     TEXT NOT NULL DEFAULT 'paper' CHECK (mode IN ('live','paper','observe')),
    active                   INTEGER NOT NULL DEFAULT 1,
    sizing                   TEXT NOT NULL DEFAULT 'absolute' CHECK (sizing IN ('absolute','proportional')),
    min_order_usdc           REAL NOT NULL DEFAULT 1.0,
    max_order_usdc           REAL,
    max_slippage_bps         INTEGER NOT NULL DEFAULT 300,
    max_consecutive_failures INTEGER NOT NULL DEFAULT 3,
    created_at               DATETIME NOT NULL,
    updated_at               DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_pairs_active_unique
    ON pairs(source_wallet_id, follower_wallet_id) WHERE active = 1;

CREATE TABLE IF NOT EXISTS trade_signals (
    id                     INTEGER PRIMARY KEY AUTOINCREMENT,
    chain_id               INTEGER NOT NULL,
    source_wallet_address  TEXT NOT NULL,
    tx_hash                TEXT NOT NULL,
    log_index              INTEGER NOT NULL,
    block_number           INTEGER NOT NULL,
    side                   TEXT NOT NULL CHECK (side IN ('buy','sell')),
    token_id               TEXT NOT NULL,
    outcome                TEXT,
    market_slug            TEXT,
    source_notional_usdc   REAL NOT NULL,
    source_price           REAL,
    source_portfolio_usdc  REAL,
    observed_at            DATETIME NOT NULL,
    UNIQUE(chain_id, source_wallet_address, tx_hash, log_index)
);

CREATE INDEX IF NOT EXISTS idx_signals_observed ON trade_signals(observed_at);

CREATE TABLE IF NOT EXISTS mirror_orders (
    id                      INTEGER PRIMARY KEY AUTOINCREMENT,
    pair_id                 INTEGER NOT NULL REFERENCES pairs(id),
    trade_signal_id         INTEGER NOT NULL REFERENCES trade_signals(id),
    requested_notional_usdc REAL NOT NULL,
    adjusted_notional_usdc  REAL NOT NULL,
    status                  TEXT NOT NULL CHECK (status IN ('queued','sent','filled','failed','canceled','blocked')),
    blocked_reason          TEXT NOT NULL DEFAULT '',
    executor_ref            TEXT NOT NULL DEFAULT '',
    created_at              DATETIME NOT NULL,
    updated_at              DATETIME NOT NULL,
    UNIQUE(pair_id, trade_signal_id)
);

CREATE INDEX IF NOT EXISTS idx_orders_status ON mirror_orders(status, updated_at);

CREATE TABLE IF NOT EXISTS executions (
    id                      INTEGER PRIMARY KEY AUTOINCREMENT,
    mirror_order_id         INTEGER NOT NULL REFERENCES mirror_orders(id),
    pair_id                 INTEGER NOT NULL,
    follower_wallet_id      INTEGER NOT NULL,
    executed_side           TEXT NOT NULL,
    executed_outcome        TEXT,
    executed_price          REAL,
    executed_notional_usdc  REAL,
    chain_tx_hash           TEXT,
    status                  TEXT NOT NULL CHECK (status IN ('filled','failed')),
    fail_reason             TEXT,
    executed_at             DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_executions_pair_time ON executions(pair_id, executed_at DESC);

CREATE TABLE IF NOT EXISTS watcher_state (
    key                   TEXT PRIMARY KEY,
    last_processed_block  INTEGER NOT NULL DEFAULT 0,
    error_streak          INTEGER NOT NULL DEFAULT 0,
    healthy_streak        INTEGER NOT NULL DEFAULT 0,
    current_poll_seconds  INTEGER NOT NULL DEFAULT 0,
    updated_at            DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    event_type TEXT NOT NULL,
    payload    TEXT NOT NULL,
    status     TEXT NOT NULL CHECK (status IN ('sent','skipped','failed')),
    created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS vault_keys (
    id                      INTEGER PRIMARY KEY AUTOINCREMENT,
    key_ref                 TEXT NOT NULL UNIQUE,
    encrypted_mnemonic_b64  TEXT NOT NULL,
    salt_b64                TEXT NOT NULL,
    nonce_b64               TEXT NOT NULL,
    mac_b64                 TEXT NOT NULL,
    status                  TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active','disabled')),
    created_at              INTEGER NOT NULL,
    updated_at              INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS heartbeats (
    component  TEXT PRIMARY KEY,
    extra      TEXT NOT NULL DEFAULT '',
    updated_at DATETIME NOT NULL
);
`

// SQLiteStorage implements ports.Store.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) the database at path and applies the schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Close() error { return s.db.Close() }

// --- SignalStore ---

func (s *SQLiteStorage) CreateSignal(ctx context.Context, sig domain.TradeSignal) (int64, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO trade_signals
			(chain_id, source_wallet_address, tx_hash, log_index, block_number, side,
			 token_id, outcome, market_slug, source_notional_usdc, source_price,
			 source_portfolio_usdc, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sig.ChainID, sig.SourceWalletAddress, sig.TxHash, sig.LogIndex, sig.BlockNumber, string(sig.Side),
		sig.TokenID, sig.Outcome, sig.MarketSlug, sig.SourceNotionalUSDC, sig.SourcePrice,
		sig.SourcePortfolioUSDC, sig.ObservedAt,
	)
	if err != nil {
		return 0, false, fmt.Errorf("storage.CreateSignal: insert: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("storage.CreateSignal: rows affected: %w", err)
	}
	if affected == 0 {
		return 0, false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("storage.CreateSignal: last insert id: %w", err)
	}
	return id, true, nil
}

func (s *SQLiteStorage) ListUnmirroredSignals(ctx context.Context, limit int) ([]ports.UnmirroredCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, t.id, fw.id, fw.address, fw.key_ref, fw.budget_usdc,
		       p.min_order_usdc, p.max_order_usdc, p.max_slippage_bps, p.mode, p.sizing,
		       t.side, t.token_id, t.outcome, t.market_slug, t.source_notional_usdc,
		       t.source_price, t.source_portfolio_usdc, t.tx_hash
		FROM trade_signals t
		JOIN pairs p ON p.source_wallet_id = (
			SELECT id FROM wallets WHERE address = t.source_wallet_address
		)
		JOIN wallets fw ON fw.id = p.follower_wallet_id
		LEFT JOIN mirror_orders mo ON mo.pair_id = p.id AND mo.trade_signal_id = t.id
		WHERE p.active = 1 AND mo.id IS NULL AND t.observed_at >= p.created_at
		ORDER BY t.id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.ListUnmirroredSignals: query: %w", err)
	}
	defer rows.Close()

	var out []ports.UnmirroredCandidate
	for rows.Next() {
		var c ports.UnmirroredCandidate
		var side string
		var mode, sizing string
		if err := rows.Scan(
			&c.PairID, &c.TradeSignalID, &c.FollowerWalletID, &c.FollowerAddress, &c.KeyRef, &c.BudgetUSDC,
			&c.MinOrderUSDC, &c.MaxOrderUSDC, &c.MaxSlippageBps, &mode, &sizing,
			&side, &c.TokenID, &c.Outcome, &c.MarketSlug, &c.SourceNotionalUSDC,
			&c.SourcePrice, &c.SourcePortfolioUSDC, &c.SourceTxHash,
		); err != nil {
			return nil, fmt.Errorf("storage.ListUnmirroredSignals: scan: %w", err)
		}
		c.Side = domain.Side(side)
		c.Mode = domain.PairMode(mode)
		c.Sizing = domain.SizingMode(sizing)
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- MirrorOrderStore ---

func (s *SQLiteStorage) CreateOrder(ctx context.Context, o domain.MirrorOrder) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO mirror_orders
			(pair_id, trade_signal_id, requested_notional_usdc, adjusted_notional_usdc,
			 status, blocked_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pair_id, trade_signal_id) DO NOTHING
	`, o.PairID, o.TradeSignalID, o.RequestedNotionalUSDC, o.AdjustedNotionalUSDC,
		string(o.Status), o.BlockedReason, now, now)
	if err != nil {
		return 0, fmt.Errorf("storage.CreateOrder: insert: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("storage.CreateOrder: rows affected: %w", err)
	}
	if affected > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("storage.CreateOrder: last insert id: %w", err)
		}
		return id, nil
	}

	var existing int64
	err = s.db.QueryRowContext(ctx, `
		SELECT id FROM mirror_orders WHERE pair_id = ? AND trade_signal_id = ?
	`, o.PairID, o.TradeSignalID).Scan(&existing)
	if err != nil {
		return 0, fmt.Errorf("storage.CreateOrder: lookup existing: %w", err)
	}
	return existing, nil
}

func (s *SQLiteStorage) ListQueuedOrders(ctx context.Context, limit int) ([]ports.QueuedOrder, error) {
	return s.listOrders(ctx, `mo.status = 'queued'`, limit)
}

func (s *SQLiteStorage) ListStaleSentOrders(ctx context.Context, maxAgeSeconds int64, limit int) ([]ports.QueuedOrder, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(maxAgeSeconds) * time.Second)
	return s.listOrdersBefore(ctx, `mo.status = 'sent'`, cutoff, limit)
}

func (s *SQLiteStorage) listOrders(ctx context.Context, where string, limit int) ([]ports.QueuedOrder, error) {
	return s.listOrdersBefore(ctx, where, time.Time{}, limit)
}

func (s *SQLiteStorage) listOrdersBefore(ctx context.Context, where string, before time.Time, limit int) ([]ports.QueuedOrder, error) {
	query := `
		SELECT mo.id, mo.pair_id, mo.trade_signal_id, mo.requested_notional_usdc, mo.adjusted_notional_usdc,
		       mo.status, mo.blocked_reason, mo.executor_ref, mo.created_at, mo.updated_at,
		       p.mode, p.follower_wallet_id, fw.address, fw.key_ref, fw.budget_usdc, p.max_slippage_bps,
		       t.side, t.token_id, t.outcome, t.source_price, t.tx_hash, t.market_slug
		FROM mirror_orders mo
		JOIN pairs p ON p.id = mo.pair_id
		JOIN wallets fw ON fw.id = p.follower_wallet_id
		JOIN trade_signals t ON t.id = mo.trade_signal_id
		WHERE ` + where
	args := []any{}
	if !before.IsZero() {
		query += ` AND mo.updated_at <= ?`
		args = append(args, before)
	}
	query += ` ORDER BY mo.created_at ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.listOrders: query: %w", err)
	}
	defer rows.Close()

	var out []ports.QueuedOrder
	for rows.Next() {
		var q ports.QueuedOrder
		var status, mode, side string
		if err := rows.Scan(
			&q.ID, &q.PairID, &q.TradeSignalID, &q.RequestedNotionalUSDC, &q.AdjustedNotionalUSDC,
			&status, &q.BlockedReason, &q.ExecutorRef, &q.CreatedAt, &q.UpdatedAt,
			&mode, &q.FollowerWalletID, &q.FollowerAddress, &q.KeyRef, &q.BudgetUSDC, &q.MaxSlippageBps,
			&side, &q.TokenID, &q.Outcome, &q.SourcePrice, &q.SourceTxHash, &q.MarketSlug,
		); err != nil {
			return nil, fmt.Errorf("storage.listOrders: scan: %w", err)
		}
		q.Status = domain.OrderStatus(status)
		q.PairMode = domain.PairMode(mode)
		q.Side = domain.Side(side)
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) SetStatus(ctx context.Context, orderID int64, status domain.OrderStatus, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE mirror_orders SET status = ?, blocked_reason = ?, updated_at = ? WHERE id = ?
	`, string(status), reason, time.Now().UTC(), orderID)
	if err != nil {
		return fmt.Errorf("storage.SetStatus: %d -> %s: %w", orderID, status, err)
	}
	return nil
}

func (s *SQLiteStorage) SetExecutorRef(ctx context.Context, orderID int64, ref string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE mirror_orders SET executor_ref = ?, updated_at = ? WHERE id = ?
	`, ref, time.Now().UTC(), orderID)
	if err != nil {
		return fmt.Errorf("storage.SetExecutorRef: %d: %w", orderID, err)
	}
	return nil
}

func (s *SQLiteStorage) HasFilledBuyForToken(ctx context.Context, pairID int64, tokenID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1
		FROM mirror_orders mo
		JOIN trade_signals t ON t.id = mo.trade_signal_id
		WHERE mo.pair_id = ? AND mo.status = 'filled' AND t.side = 'buy' AND t.token_id = ?
		LIMIT 1
	`, pairID, tokenID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage.HasFilledBuyForToken: %w", err)
	}
	return true, nil
}

func (s *SQLiteStorage) HasRecentBalanceFailure(ctx context.Context, pairID int64, withinSeconds int64) (bool, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(withinSeconds) * time.Second)
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM executions
		WHERE pair_id = ? AND status = 'failed' AND executed_at >= ?
		  AND (fail_reason LIKE '%balance%' OR fail_reason LIKE '%allowance%')
		LIMIT 1
	`, pairID, cutoff).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage.HasRecentBalanceFailure: %w", err)
	}
	return true, nil
}

func (s *SQLiteStorage) CreateExecution(ctx context.Context, e domain.Execution) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions
			(mirror_order_id, pair_id, follower_wallet_id, executed_side, executed_outcome,
			 executed_price, executed_notional_usdc, chain_tx_hash, status, fail_reason, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.MirrorOrderID, e.PairID, e.FollowerWalletID, string(e.ExecutedSide), e.ExecutedOutcome,
		e.ExecutedPrice, e.ExecutedNotionalUSDC, e.ChainTxHash, string(e.Status), e.FailReason, e.ExecutedAt)
	if err != nil {
		return fmt.Errorf("storage.CreateExecution: %w", err)
	}
	return nil
}

// --- WalletStore ---

func (s *SQLiteStorage) GetWallet(ctx context.Context, id int64) (domain.Wallet, error) {
	var w domain.Wallet
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, address, alias, status, portfolio_usdc, budget_usdc, key_ref, created_at, updated_at
		FROM wallets WHERE id = ?
	`, id).Scan(&w.ID, &w.Address, &w.Alias, &status, &w.PortfolioUSDC, &w.BudgetUSDC, &w.KeyRef, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("storage.GetWallet: %w", err)
	}
	w.Status = domain.WalletStatus(status)
	return w, nil
}

func (s *SQLiteStorage) ListActiveSourceAddresses(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT w.address
		FROM wallets w
		JOIN pairs p ON p.source_wallet_id = w.id
		WHERE w.status = 'active' AND p.active = 1
	`)
	if err != nil {
		return nil, fmt.Errorf("storage.ListActiveSourceAddresses: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("storage.ListActiveSourceAddresses: scan: %w", err)
		}
		out = append(out, addr)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) ConsumeBudget(ctx context.Context, walletID int64, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("storage.ConsumeBudget: negative amount %f", amount)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE wallets
		SET budget_usdc = MAX(budget_usdc - ?, 0), updated_at = ?
		WHERE id = ?
	`, amount, time.Now().UTC(), walletID)
	if err != nil {
		return fmt.Errorf("storage.ConsumeBudget: %w", err)
	}
	return nil
}

// --- PairStore ---

func (s *SQLiteStorage) GetPair(ctx context.Context, id int64) (domain.Pair, error) {
	var p domain.Pair
	var mode, sizing string
	var active int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source_wallet_id, follower_wallet_id, mode, active, sizing, min_order_usdc,
		       max_order_usdc, max_slippage_bps, max_consecutive_failures, created_at, updated_at
		FROM pairs WHERE id = ?
	`, id).Scan(&p.ID, &p.SourceWalletID, &p.FollowerWalletID, &mode, &active, &sizing, &p.MinOrderUSDC,
		&p.MaxOrderUSDC, &p.MaxSlippageBps, &p.MaxConsecutiveFailures, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Pair{}, fmt.Errorf("storage.GetPair: %w", err)
	}
	p.Mode = domain.PairMode(mode)
	p.Sizing = domain.SizingMode(sizing)
	p.Active = active != 0
	return p, nil
}

func (s *SQLiteStorage) CountActivePairs(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pairs WHERE active = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage.CountActivePairs: %w", err)
	}
	return n, nil
}

// --- WatcherStateStore ---

func (s *SQLiteStorage) GetWatcherState(ctx context.Context, key string) (domain.WatcherState, bool, error) {
	var ws domain.WatcherState
	ws.Key = key
	err := s.db.QueryRowContext(ctx, `
		SELECT last_processed_block, error_streak, healthy_streak, current_poll_seconds
		FROM watcher_state WHERE key = ?
	`, key).Scan(&ws.LastProcessedBlock, &ws.ErrorStreak, &ws.HealthyStreak, &ws.CurrentPollSeconds)
	if err == sql.ErrNoRows {
		return domain.WatcherState{Key: key}, false, nil
	}
	if err != nil {
		return domain.WatcherState{}, false, fmt.Errorf("storage.GetWatcherState: %w", err)
	}
	return ws, true, nil
}

func (s *SQLiteStorage) SaveWatcherState(ctx context.Context, ws domain.WatcherState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watcher_state(key, last_processed_block, error_streak, healthy_streak, current_poll_seconds, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			last_processed_block = excluded.last_processed_block,
			error_streak = excluded.error_streak,
			healthy_streak = excluded.healthy_streak,
			current_poll_seconds = excluded.current_poll_seconds,
			updated_at = excluded.updated_at
	`, ws.Key, ws.LastProcessedBlock, ws.ErrorStreak, ws.HealthyStreak, ws.CurrentPollSeconds, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage.SaveWatcherState: %w", err)
	}
	return nil
}

// --- AlertStore ---

func (s *SQLiteStorage) RecordAlert(ctx context.Context, a domain.AlertLedger) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts(event_type, payload, status, created_at) VALUES (?, ?, ?, ?)
	`, string(a.EventType), a.Payload, string(a.Status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage.RecordAlert: %w", err)
	}
	return nil
}

// --- VaultStore ---

func (s *SQLiteStorage) UpsertVaultKey(ctx context.Context, keyRef string, blob ports.VaultBlob) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vault_keys(key_ref, encrypted_mnemonic_b64, salt_b64, nonce_b64, mac_b64, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'active', ?, ?)
		ON CONFLICT(key_ref) DO UPDATE SET
			encrypted_mnemonic_b64 = excluded.encrypted_mnemonic_b64,
			salt_b64 = excluded.salt_b64,
			nonce_b64 = excluded.nonce_b64,
			mac_b64 = excluded.mac_b64,
			status = 'active',
			updated_at = excluded.updated_at
	`, keyRef, blob.CiphertextB64, blob.SaltB64, blob.NonceB64, blob.MacB64, now, now)
	if err != nil {
		return fmt.Errorf("storage.UpsertVaultKey: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetVaultKey(ctx context.Context, keyRef string) (ports.VaultBlob, bool, error) {
	var b ports.VaultBlob
	err := s.db.QueryRowContext(ctx, `
		SELECT encrypted_mnemonic_b64, salt_b64, nonce_b64, mac_b64
		FROM vault_keys WHERE key_ref = ? AND status = 'active'
	`, keyRef).Scan(&b.CiphertextB64, &b.SaltB64, &b.NonceB64, &b.MacB64)
	if err == sql.ErrNoRows {
		return ports.VaultBlob{}, false, nil
	}
	if err != nil {
		return ports.VaultBlob{}, false, fmt.Errorf("storage.GetVaultKey: %w", err)
	}
	return b, true, nil
}

func (s *SQLiteStorage) ListVaultKeys(ctx context.Context) ([]ports.VaultKeyMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key_ref, status, created_at, updated_at FROM vault_keys ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("storage.ListVaultKeys: %w", err)
	}
	defer rows.Close()

	var out []ports.VaultKeyMeta
	for rows.Next() {
		var m ports.VaultKeyMeta
		if err := rows.Scan(&m.KeyRef, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage.ListVaultKeys: scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- HeartbeatStore ---

func (s *SQLiteStorage) Heartbeat(ctx context.Context, component string, extra string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO heartbeats(component, extra, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(component) DO UPDATE SET extra = excluded.extra, updated_at = excluded.updated_at
	`, component, extra, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage.Heartbeat: %w", err)
	}
	return nil
}
