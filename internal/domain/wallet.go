package domain

import "time"

// WalletStatus is the lifecycle flag an operator toggles on a wallet row.
type WalletStatus string

const (
	WalletActive   WalletStatus = "active"
	WalletDisabled WalletStatus = "disabled"
)

// Wallet is either a watched source or a funded follower, depending on which
// Pair references it. The two roles share a table; nothing on the struct
// distinguishes them — only how a Pair points at them does.
type Wallet struct {
	ID             int64
	Address        string // 20-byte hex, lowercased
	Alias          string
	Status         WalletStatus
	PortfolioUSDC  *float64 // baseline for proportional sizing, source wallets only
	BudgetUSDC     float64  // follower wallets only; zero for source wallets
	KeyRef         string   // vault://name, follower wallets only
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsActive reports whether the wallet should currently be watched/traded.
func (w Wallet) IsActive() bool {
	return w.Status == WalletActive
}
