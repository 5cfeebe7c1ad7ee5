package ports

import "context"

// ChatSink is the outbound channel a Notifier posts human-readable alert
// text to — a console writer or a webhook, interchangeably.
type ChatSink interface {
	Send(ctx context.Context, message string) error
}

// Notifier is the capability the worker loop and reconciler call, one method
// per alert category; message formatting and AlertLedger bookkeeping live
// behind it. The blocked-alert cooldown is applied by the caller, not here.
type Notifier interface {
	NotifyBlocked(ctx context.Context, pairID, tradeSignalID int64, requestedNotional float64, reason string)
	NotifySent(ctx context.Context, orderID, pairID, followerWalletID int64, side string, outcome *string, notional float64, sourceTxHash string, marketSlug *string)
	NotifyFilled(ctx context.Context, orderID, pairID, followerWalletID int64, side string, outcome *string, notional float64, chainTxHash string, sourceTxHash string, marketSlug *string)
	NotifyFailed(ctx context.Context, orderID, pairID, followerWalletID int64, side string, outcome *string, notional float64, failReason string, sourceTxHash string, marketSlug *string)
	NotifyCanceled(ctx context.Context, orderID, pairID, followerWalletID int64, side string, reason string)
	NotifyKillSwitch(ctx context.Context, reason string)
}
