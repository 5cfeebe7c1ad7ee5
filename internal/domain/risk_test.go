package domain

import "testing"

func baseLimits() RiskLimits {
	return RiskLimits{
		MaxOrderUSD:                500,
		MaxDailyLossPct:            10,
		MaxConsecutiveLosses:       5,
		MaxConsecutiveExecFailures: 3,
	}
}

func baseState() RiskState {
	return RiskState{DailyStartEquity: 1000}
}

func TestCheckPreTrade_Allows(t *testing.T) {
	d := CheckPreTrade(50, baseLimits(), baseState())
	if !d.Allowed || d.Reason != "risk_ok" {
		t.Fatalf("got %+v, want allowed", d)
	}
}

func TestCheckPreTrade_KillSwitchWins(t *testing.T) {
	s := baseState()
	s.KillSwitch = true
	d := CheckPreTrade(50, baseLimits(), s)
	if d.Allowed || d.Reason != "kill_switch_on" {
		t.Fatalf("got %+v, want kill_switch_on", d)
	}
}

func TestCheckPreTrade_OrderAboveMax(t *testing.T) {
	d := CheckPreTrade(600, baseLimits(), baseState())
	if d.Allowed || d.Reason != "order_above_max" {
		t.Fatalf("got %+v, want order_above_max", d)
	}
}

func TestCheckPreTrade_ConsecutiveLosses(t *testing.T) {
	s := baseState()
	s.ConsecutiveLosses = 5
	d := CheckPreTrade(50, baseLimits(), s)
	if d.Allowed || d.Reason != "max_consecutive_losses_reached" {
		t.Fatalf("got %+v, want max_consecutive_losses_reached", d)
	}
}

func TestCheckPreTrade_DailyLossLimit(t *testing.T) {
	s := baseState()
	s.RunningPnL = -150 // 15% of 1000
	d := CheckPreTrade(50, baseLimits(), s)
	if d.Allowed || d.Reason != "max_daily_loss_reached" {
		t.Fatalf("got %+v, want max_daily_loss_reached", d)
	}
}

func TestCheckPreTrade_PositivePnLNeverCountsAsLoss(t *testing.T) {
	s := baseState()
	s.RunningPnL = 500
	d := CheckPreTrade(50, baseLimits(), s)
	if !d.Allowed {
		t.Fatalf("got %+v, want allowed with positive pnl", d)
	}
}

func TestApplyFill_ResetsExecFailuresAndTracksLosses(t *testing.T) {
	s := baseState()
	s.ConsecutiveExecFailures = 2
	s.ConsecutiveLosses = 1

	won := s.ApplyFill(10)
	if won.ConsecutiveLosses != 0 || won.ConsecutiveExecFailures != 0 || won.RunningPnL != 10 {
		t.Fatalf("got %+v, want losses reset on a winning fill", won)
	}

	lost := s.ApplyFill(-10)
	if lost.ConsecutiveLosses != 2 || lost.ConsecutiveExecFailures != 0 {
		t.Fatalf("got %+v, want consecutive losses incremented", lost)
	}
}

func TestApplyExecFailure_TripsKillSwitchAtLimit(t *testing.T) {
	s := baseState()
	limits := baseLimits()

	s, tripped := s.ApplyExecFailure(limits)
	if tripped || s.KillSwitch {
		t.Fatalf("should not trip on first failure")
	}
	s, tripped = s.ApplyExecFailure(limits)
	if tripped || s.KillSwitch {
		t.Fatalf("should not trip on second failure")
	}
	s, tripped = s.ApplyExecFailure(limits)
	if !tripped || !s.KillSwitch {
		t.Fatalf("should trip on third failure (limit=3)")
	}

	// Once tripped, further failures don't re-report tripped=true.
	s, tripped = s.ApplyExecFailure(limits)
	if tripped {
		t.Fatalf("kill switch already latched, shouldn't report tripped again")
	}
	if !s.KillSwitch {
		t.Fatalf("kill switch should remain latched")
	}
}

func TestShouldSuppressBlockAlert_SuppressesWithinCooldown(t *testing.T) {
	s := baseState()
	suppressed, next := s.ShouldSuppressBlockAlert("1:insufficient_budget_for_one_share", 1000, 60)
	if suppressed {
		t.Fatalf("first call should never be suppressed")
	}

	suppressed, _ = next.ShouldSuppressBlockAlert("1:insufficient_budget_for_one_share", 1030, 60)
	if !suppressed {
		t.Fatalf("repeat within cooldown window should be suppressed")
	}

	suppressed, _ = next.ShouldSuppressBlockAlert("1:insufficient_budget_for_one_share", 1061, 60)
	if suppressed {
		t.Fatalf("repeat after cooldown window should not be suppressed")
	}
}

func TestShouldSuppressBlockAlert_DifferentKeysIndependent(t *testing.T) {
	s := baseState()
	_, next := s.ShouldSuppressBlockAlert("1:reasonA", 1000, 60)
	suppressed, _ := next.ShouldSuppressBlockAlert("1:reasonB", 1000, 60)
	if suppressed {
		t.Fatalf("a different key should get its own cooldown window")
	}
}
