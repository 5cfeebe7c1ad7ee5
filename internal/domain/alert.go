package domain

import "time"

// AlertStatus records what actually happened when the Notifier tried to send
// a message — never whether the underlying event was good or bad news.
type AlertStatus string

const (
	AlertSent    AlertStatus = "sent"
	AlertSkipped AlertStatus = "skipped"
	AlertFailed  AlertStatus = "failed"
)

// AlertEventType enumerates the categories spec §6 names for outbound alerts.
type AlertEventType string

const (
	EventFilled     AlertEventType = "filled"
	EventSent       AlertEventType = "sent"
	EventFailed     AlertEventType = "failed"
	EventBlocked    AlertEventType = "blocked"
	EventCanceled   AlertEventType = "canceled"
	EventKillSwitch AlertEventType = "kill_switch"
	EventRiskAlert  AlertEventType = "risk_alert"
)

// AlertLedger is the append-only record of every alert the Notifier
// attempted to emit, regardless of outcome.
type AlertLedger struct {
	ID        int64
	EventType AlertEventType
	Payload   string
	Status    AlertStatus
	CreatedAt time.Time
}
