package metrics

import (
	"math"
	"testing"
	"time"
)

func at(y int, m time.Month, d, hour int) int64 {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC).UnixMilli()
}

func TestDrawdown_StartFixedAtFirstBelowPeakTick(t *testing.T) {
	tr := NewTracker(1000, 0)

	tr.Observe(at(2025, time.January, 6, 14), 100, 1000)
	tr.Observe(at(2025, time.January, 6, 15), 99, 990) // drawdown opens here
	tr.Observe(at(2025, time.January, 6, 16), 95, 950)
	tr.Observe(at(2025, time.January, 6, 17), 101, 1010) // new peak closes it

	report := tr.Report(1010)
	if len(report.Drawdowns) != 1 {
		t.Fatalf("Expected 1 drawdown period, got %d", len(report.Drawdowns))
	}
	dd := report.Drawdowns[0]
	if dd.Start != at(2025, time.January, 6, 15) {
		t.Errorf("Drawdown start %d, want the first below-peak tick", dd.Start)
	}
	if dd.End != at(2025, time.January, 6, 17) {
		t.Errorf("Drawdown end %d, want the new-peak tick", dd.End)
	}
	if dd.PeakEquity != 1000 || dd.TroughEquity != 950 {
		t.Errorf("Drawdown peak/trough %f/%f, want 1000/950", dd.PeakEquity, dd.TroughEquity)
	}
	if math.Abs(report.MaxDrawdownPct-5) > 1e-9 {
		t.Errorf("MaxDrawdownPct %f, want 5", report.MaxDrawdownPct)
	}
	if math.Abs(report.MaxDrawdownDollars-50) > 1e-9 {
		t.Errorf("MaxDrawdownDollars %f, want 50", report.MaxDrawdownDollars)
	}
}

func TestDrawdown_PercentAndDollarIndependent(t *testing.T) {
	tr := NewTracker(1000, 0)

	// Period 1: peak 1000 -> trough 800 (20%, $200).
	tr.Observe(at(2025, time.January, 6, 14), 100, 1000)
	tr.Observe(at(2025, time.January, 7, 14), 80, 800)
	// Recover to a much higher peak.
	tr.Observe(at(2025, time.February, 3, 14), 200, 5000)
	// Period 2: trough 4500 (10%, $500).
	tr.Observe(at(2025, time.February, 4, 14), 180, 4500)

	report := tr.Report(4500)
	if math.Abs(report.MaxDrawdownPct-20) > 1e-9 {
		t.Errorf("MaxDrawdownPct %f, want 20 from the first period", report.MaxDrawdownPct)
	}
	if math.Abs(report.MaxDrawdownDollars-500) > 1e-9 {
		t.Errorf("MaxDrawdownDollars %f, want 500 from the second period", report.MaxDrawdownDollars)
	}
}

func TestMonthly_LastValueWinsAndDeltas(t *testing.T) {
	tr := NewTracker(1000, 0)

	tr.Observe(at(2025, time.January, 6, 14), 100, 1000)
	tr.Observe(at(2025, time.January, 31, 19), 110, 1100) // January closes at 1100
	tr.Observe(at(2025, time.February, 3, 14), 105, 1050)
	tr.Observe(at(2025, time.February, 28, 19), 120, 1210) // February closes at 1210
	tr.Observe(at(2025, time.March, 3, 14), 100, 968)      // March closes at 968

	report := tr.Report(968)
	if len(report.MonthlyReturns) != 3 {
		t.Fatalf("Expected 3 monthly entries, got %d", len(report.MonthlyReturns))
	}
	jan, feb, mar := report.MonthlyReturns[0], report.MonthlyReturns[1], report.MonthlyReturns[2]
	if jan.Month != "2025-01" || jan.Equity != 1100 {
		t.Errorf("January %s/%f, want 2025-01/1100", jan.Month, jan.Equity)
	}
	if math.Abs(feb.ChangePct-10) > 1e-9 {
		t.Errorf("February delta %f, want +10", feb.ChangePct)
	}
	if math.Abs(mar.ChangePct-(-20)) > 1e-9 {
		t.Errorf("March delta %f, want -20", mar.ChangePct)
	}
	if math.Abs(report.BestMonthPct-10) > 1e-9 || math.Abs(report.WorstMonthPct-(-20)) > 1e-9 {
		t.Errorf("Best/worst %f/%f, want 10/-20", report.BestMonthPct, report.WorstMonthPct)
	}
}

func TestMonthly_SingleMonthFallsBackToTotalReturn(t *testing.T) {
	tr := NewTracker(1000, 0)
	tr.Observe(at(2025, time.January, 6, 14), 100, 1000)
	tr.Observe(at(2025, time.January, 20, 14), 105, 1050)

	report := tr.Report(1050)
	if math.Abs(report.TotalReturnPct-5) > 1e-9 {
		t.Fatalf("TotalReturnPct %f, want 5", report.TotalReturnPct)
	}
	if report.BestMonthPct != report.TotalReturnPct || report.WorstMonthPct != report.TotalReturnPct {
		t.Errorf("Sub-month run must report best=worst=total, got %f/%f", report.BestMonthPct, report.WorstMonthPct)
	}
}

func TestTotalReturn_AccountsForContributions(t *testing.T) {
	tr := NewTracker(1000, 0)
	tr.Observe(at(2025, time.January, 6, 14), 100, 1000)
	tr.OnContribution(500)
	tr.Observe(at(2025, time.February, 6, 14), 100, 1500)

	// Final equity 1800 on 1500 contributed is a 20% return.
	report := tr.Report(1800)
	if math.Abs(report.TotalReturnPct-20) > 1e-9 {
		t.Errorf("TotalReturnPct %f, want 20", report.TotalReturnPct)
	}
}

func TestBuyAndHold_InvestsAtObservedPricesRespectingFloor(t *testing.T) {
	tr := NewTracker(1000, 200)

	// First tick at 100: invest 800, keep the 200 floor -> 8 shares.
	tr.Observe(at(2025, time.January, 6, 14), 100, 1000)
	// Contribution of 400 invested at 80 -> 5 more shares.
	tr.OnContribution(400)
	tr.Observe(at(2025, time.January, 7, 14), 80, 1000)

	// At a last price of 120: 13 shares * 120 + 200 floor cash = 1760.
	tr.Observe(at(2025, time.January, 8, 14), 120, 1000)
	report := tr.Report(1000)
	if math.Abs(report.BuyAndHoldEquity-1760) > 1e-9 {
		t.Errorf("BuyAndHoldEquity %f, want 1760", report.BuyAndHoldEquity)
	}
}

func TestTradeCount(t *testing.T) {
	tr := NewTracker(1000, 0)
	for i := 0; i < 7; i++ {
		tr.OnFill()
	}
	if got := tr.Report(1000).TradeCount; got != 7 {
		t.Errorf("TradeCount %d, want 7", got)
	}
}
