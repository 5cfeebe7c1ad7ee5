// Package notify implements ports.Notifier: message formatting, an
// AlertLedger record for every send attempt regardless of outcome, and a
// ports.ChatSink to actually deliver it. Grounded on the pack's Telegram
// notifiers (message-per-event-type, one outbound call per alert) but
// generalized to an injectable sink and a neutral plain-text format.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/mirrorcore/internal/domain"
	"github.com/alejandrodnm/mirrorcore/internal/ports"
)

// Notifier formats alerts, sends them through a ports.ChatSink, and records
// every attempt in the AlertLedger. Send failures are logged, never
// propagated — per spec §4.8 the pipeline must never block on a notifier.
type Notifier struct {
	log   *slog.Logger
	sink  ports.ChatSink
	store ports.AlertStore
}

func New(log *slog.Logger, sink ports.ChatSink, store ports.AlertStore) *Notifier {
	return &Notifier{log: log, sink: sink, store: store}
}

func (n *Notifier) NotifyBlocked(ctx context.Context, pairID, tradeSignalID int64, requestedNotional float64, reason string) {
	msg := fmt.Sprintf("BLOCKED pair=%d signal=%d notional=$%.2f reason=%s", pairID, tradeSignalID, requestedNotional, reason)
	n.send(ctx, domain.EventBlocked, msg)
}

func (n *Notifier) NotifySent(ctx context.Context, orderID, pairID, followerWalletID int64, side string, outcome *string, notional float64, sourceTxHash string, marketSlug *string) {
	msg := fmt.Sprintf("SENT order=%d pair=%d wallet=%d %s %s notional=$%.2f src_tx=%s%s",
		orderID, pairID, followerWalletID, side, outcomeLabel(outcome), notional, sourceTxHash, marketLabel(marketSlug))
	n.send(ctx, domain.EventSent, msg)
}

func (n *Notifier) NotifyFilled(ctx context.Context, orderID, pairID, followerWalletID int64, side string, outcome *string, notional float64, chainTxHash string, sourceTxHash string, marketSlug *string) {
	msg := fmt.Sprintf("FILLED order=%d pair=%d wallet=%d %s %s notional=$%.2f tx=%s src_tx=%s%s",
		orderID, pairID, followerWalletID, side, outcomeLabel(outcome), notional, chainTxHash, sourceTxHash, marketLabel(marketSlug))
	n.send(ctx, domain.EventFilled, msg)
}

func (n *Notifier) NotifyFailed(ctx context.Context, orderID, pairID, followerWalletID int64, side string, outcome *string, notional float64, failReason string, sourceTxHash string, marketSlug *string) {
	msg := fmt.Sprintf("FAILED order=%d pair=%d wallet=%d %s %s notional=$%.2f reason=%s src_tx=%s%s",
		orderID, pairID, followerWalletID, side, outcomeLabel(outcome), notional, failReason, sourceTxHash, marketLabel(marketSlug))
	n.send(ctx, domain.EventFailed, msg)
}

func (n *Notifier) NotifyCanceled(ctx context.Context, orderID, pairID, followerWalletID int64, side string, reason string) {
	msg := fmt.Sprintf("CANCELED order=%d pair=%d wallet=%d %s reason=%s", orderID, pairID, followerWalletID, side, reason)
	n.send(ctx, domain.EventCanceled, msg)
}

func (n *Notifier) NotifyKillSwitch(ctx context.Context, reason string) {
	msg := fmt.Sprintf("KILL SWITCH TRIPPED reason=%s", reason)
	n.send(ctx, domain.EventKillSwitch, msg)
}

func (n *Notifier) send(ctx context.Context, event domain.AlertEventType, payload string) {
	status := domain.AlertSent
	if n.sink == nil {
		status = domain.AlertSkipped
	} else if err := n.sink.Send(ctx, payload); err != nil {
		n.log.Warn("notify: send failed", "event", event, "err", err)
		status = domain.AlertFailed
	}

	entry := domain.AlertLedger{
		EventType: event,
		Payload:   payload,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
	if err := n.store.RecordAlert(ctx, entry); err != nil {
		n.log.Error("notify: record alert ledger failed", "event", event, "err", err)
	}
}

func outcomeLabel(outcome *string) string {
	if outcome == nil {
		return ""
	}
	return *outcome
}

func marketLabel(slug *string) string {
	if slug == nil || *slug == "" {
		return ""
	}
	return " market=" + *slug
}
