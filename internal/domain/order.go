package domain

import "time"

// OrderStatus is a MirrorOrder's position in the state machine.
type OrderStatus string

const (
	OrderQueued   OrderStatus = "queued"
	OrderSent     OrderStatus = "sent"
	OrderFilled   OrderStatus = "filled"
	OrderFailed   OrderStatus = "failed"
	OrderCanceled OrderStatus = "canceled"
	OrderBlocked  OrderStatus = "blocked"
)

// RepriceAfterTimeoutReason marks the one-time sent->queued transition the
// Reconciler performs for a stale BUY order. It is stored as BlockedReason
// so a second timeout on the same order is detected and treated as terminal.
const RepriceAfterTimeoutReason = "reprice_after_timeout"

// MirrorOrder is the follower-side order derived from a TradeSignal for one
// pair. (PairID, TradeSignalID) is unique — this is the idempotency boundary
// for the whole pipeline downstream of signal ingestion.
type MirrorOrder struct {
	ID                     int64
	PairID                 int64
	TradeSignalID          int64
	RequestedNotionalUSDC  float64
	AdjustedNotionalUSDC   float64
	Status                 OrderStatus
	BlockedReason          string
	ExecutorRef            string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// validTransitions enumerates every edge in the §4.6 state machine. The zero
// value "" covers order creation (create -> queued|blocked).
var validTransitions = map[OrderStatus]map[OrderStatus]bool{
	"":          {OrderQueued: true, OrderBlocked: true},
	OrderQueued: {OrderSent: true},
	OrderSent: {
		OrderFilled:   true,
		OrderFailed:   true,
		OrderCanceled: true,
		OrderQueued:   true, // reprice-after-timeout, BUY only, once
	},
}

// CanTransition reports whether moving from `from` to `to` is a valid edge in
// the MirrorOrder state machine, independent of any side-channel data (e.g.
// the reprice-once constraint, enforced by the caller via BlockedReason).
func CanTransition(from, to OrderStatus) bool {
	edges, ok := validTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// IsTerminal reports whether status is one of the four terminal states.
func (o MirrorOrder) IsTerminal() bool {
	switch o.Status {
	case OrderFilled, OrderFailed, OrderCanceled, OrderBlocked:
		return true
	default:
		return false
	}
}

// AlreadyRepriced reports whether this order has already gone through the
// single permitted sent->queued(reprice_after_timeout) transition.
func (o MirrorOrder) AlreadyRepriced() bool {
	return o.BlockedReason == RepriceAfterTimeoutReason
}
