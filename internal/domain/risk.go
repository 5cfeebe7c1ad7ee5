package domain

// RiskLimits is the static configuration side of the RiskGuard pre-trade
// check. Grounded on the STX/stSTX bot's risk.guard.RiskLimits.
type RiskLimits struct {
	MaxOrderUSD                float64
	MaxDailyLossPct            float64
	MaxConsecutiveLosses       int
	MaxConsecutiveExecFailures int
}

// RiskState is the process-wide mutable side, threaded through the worker
// loop as an immutable value rather than held behind a package-level global
// (see spec's design note on process-wide mutable state). Every post-trade
// update produces a new RiskState; nothing mutates a RiskState in place.
type RiskState struct {
	RunningPnL               float64
	ConsecutiveLosses        int
	ConsecutiveExecFailures  int
	ManualPause              bool
	KillSwitch               bool
	DailyStartEquity         float64
	BlockAlertCooldownUntil  map[string]int64 // blocked_reason -> unix epoch seconds
}

// RiskDecision is the pre-trade verdict.
type RiskDecision struct {
	Allowed bool
	Reason  string
}

// CheckPreTrade evaluates the ordered deny-chain from spec §4.7. It is a pure
// function of (orderUSD, limits, state) — no I/O, no clock reads — so the
// worker loop can call it once per candidate order without side effects.
func CheckPreTrade(orderUSD float64, limits RiskLimits, state RiskState) RiskDecision {
	switch {
	case state.KillSwitch:
		return RiskDecision{Reason: "kill_switch_on"}
	case state.ManualPause:
		return RiskDecision{Reason: "manual_pause_on"}
	case orderUSD <= 0:
		return RiskDecision{Reason: "invalid_order_size"}
	case orderUSD > limits.MaxOrderUSD:
		return RiskDecision{Reason: "order_above_max"}
	case state.ConsecutiveLosses >= limits.MaxConsecutiveLosses:
		return RiskDecision{Reason: "max_consecutive_losses_reached"}
	case state.ConsecutiveExecFailures >= limits.MaxConsecutiveExecFailures:
		return RiskDecision{Reason: "max_consecutive_exec_failures_reached"}
	case state.DailyStartEquity <= 0:
		return RiskDecision{Reason: "invalid_daily_start_equity"}
	}

	if dailyLossPct(state) >= limits.MaxDailyLossPct {
		return RiskDecision{Reason: "max_daily_loss_reached"}
	}
	return RiskDecision{Allowed: true, Reason: "risk_ok"}
}

// dailyLossPct mirrors _compute_daily_loss_pct: only a negative running PnL
// counts as loss; a flat or positive day is 0%.
func dailyLossPct(state RiskState) float64 {
	if state.RunningPnL >= 0 {
		return 0
	}
	return -state.RunningPnL / state.DailyStartEquity * 100
}

// ApplyFill returns the RiskState after a filled execution: running PnL moves
// by pnlDelta, consecutive-loss/exec-failure counters update, and
// consecutive-exec-failures always resets on any successful fill.
func (s RiskState) ApplyFill(pnlDelta float64) RiskState {
	next := s
	next.RunningPnL += pnlDelta
	if pnlDelta < 0 {
		next.ConsecutiveLosses++
	} else {
		next.ConsecutiveLosses = 0
	}
	next.ConsecutiveExecFailures = 0
	return next
}

// ApplyExecFailure returns the RiskState after an executor failure (as
// opposed to a venue fill that happened to lose money). Reaching the
// configured limit latches the kill switch.
func (s RiskState) ApplyExecFailure(limits RiskLimits) (RiskState, bool) {
	next := s
	next.ConsecutiveExecFailures++
	tripped := next.ConsecutiveExecFailures >= limits.MaxConsecutiveExecFailures && !next.KillSwitch
	if tripped {
		next.KillSwitch = true
	}
	return next, tripped
}

// ShouldSuppressBlockAlert reports whether a blocked-reason alert for key
// (by convention "<pairID>:<blockedReason>") falls inside its cooldown
// window, and returns the state to persist when it isn't suppressed. A
// suppressed call leaves the existing deadline untouched — matching the
// original worker's per-(pair, reason) noisy-alert suppression — so the
// window doesn't keep sliding forward on every repeat.
func (s RiskState) ShouldSuppressBlockAlert(key string, now, cooldownSeconds int64) (bool, RiskState) {
	if cooldownSeconds <= 0 {
		return false, s
	}
	if until, seen := s.BlockAlertCooldownUntil[key]; seen && now < until {
		return true, s
	}

	next := s
	m := make(map[string]int64, len(s.BlockAlertCooldownUntil)+1)
	for k, v := range s.BlockAlertCooldownUntil {
		m[k] = v
	}
	m[key] = now + cooldownSeconds
	next.BlockAlertCooldownUntil = m
	return false, next
}
