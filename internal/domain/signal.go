package domain

import (
	"strconv"
	"time"
)

// Side is the direction of a trade leg, as detected by the ChainWatcher.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TradeSignal is one observed source-wallet trade leg, normalized from an
// OrderFilled log. Immutable once inserted — the unique key
// (ChainID, SourceWallet, TxHash, LogIndex) enforces at-most-once ingestion.
type TradeSignal struct {
	ID                  int64
	ChainID             int64
	TxHash              string
	LogIndex            int64
	BlockNumber         int64
	SourceWalletAddress string
	Side                Side
	TokenID             string
	Outcome             *string
	MarketSlug          *string
	SourceNotionalUSDC  float64
	SourcePrice         *float64
	SourcePortfolioUSDC *float64
	ObservedAt          time.Time
}

// IdempotencyKey is the string form of the signal's unique key. The
// blocked-alert cooldown does not use it; that keys on pair ID and reason.
func (s TradeSignal) IdempotencyKey() string {
	return "chain:" + strconv.FormatInt(s.ChainID, 10) +
		":" + s.SourceWalletAddress +
		":" + s.TxHash +
		":" + strconv.FormatInt(s.LogIndex, 10)
}
