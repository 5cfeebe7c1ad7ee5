package domain

import "time"

// PairMode controls whether a pair's orders actually hit the venue.
type PairMode string

const (
	ModeLive    PairMode = "live"
	ModePaper   PairMode = "paper"
	ModeObserve PairMode = "observe"
)

// SizingMode selects how Sizer turns a source notional into a follower notional.
type SizingMode string

const (
	SizingAbsolute    SizingMode = "absolute"
	SizingProportional SizingMode = "proportional"
)

// Pair binds one watched source wallet to one funded follower wallet under a
// policy. At most one active Pair may exist per (SourceWalletID, FollowerWalletID).
type Pair struct {
	ID                     int64
	SourceWalletID         int64
	FollowerWalletID       int64
	Mode                   PairMode
	Active                 bool
	Sizing                 SizingMode
	MinOrderUSDC           float64
	MaxOrderUSDC           *float64
	MaxSlippageBps         int
	MaxConsecutiveFailures int
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
