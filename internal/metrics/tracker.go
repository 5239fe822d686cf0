// Package metrics accumulates run analytics from the bar/fill event stream:
// drawdown periods, monthly returns, trade counts and a buy-and-hold shadow
// ledger for comparison.
package metrics

import (
	"sort"

	"grid-trading-lab/internal/calendar"
	"grid-trading-lab/internal/domain"
)

// Tracker consumes equity observations and fill events for one run.
// Not safe for concurrent use; each run owns its own instance.
type Tracker struct {
	cashFloor   float64
	contributed float64

	peak      float64
	drawdowns []domain.DrawdownPeriod
	openDD    bool

	monthOrder  []string
	monthEquity map[string]float64

	tradeCount int

	// Buy-and-hold shadow ledger: capital waiting to be invested plus the
	// position built so far. Pending cash is deployed at the next observed
	// price, down to the same cash floor the strategy honors.
	shadowPending float64
	shadowCash    float64
	shadowShares  float64
	lastPrice     float64
}

// NewTracker creates a tracker. The starting capital is queued for the
// buy-and-hold shadow and counted as contributed capital.
func NewTracker(startingCapital, cashFloor float64) *Tracker {
	return &Tracker{
		cashFloor:     cashFloor,
		contributed:   startingCapital,
		shadowPending: startingCapital,
		monthEquity:   make(map[string]float64),
	}
}

// Observe records one bar tick: price and marked equity at the timestamp.
func (t *Tracker) Observe(timestamp int64, price, equity float64) {
	t.lastPrice = price
	t.investPending(price)
	t.updateDrawdown(timestamp, equity)
	t.updateMonthly(timestamp, equity)
}

// OnFill records an executed trade.
func (t *Tracker) OnFill() {
	t.tradeCount++
}

// OnContribution records an external capital injection; the shadow ledger
// invests it at the next observed price.
func (t *Tracker) OnContribution(amount float64) {
	t.contributed += amount
	t.shadowPending += amount
}

func (t *Tracker) investPending(price float64) {
	if t.shadowPending <= 0 || price <= 0 {
		return
	}
	t.shadowCash += t.shadowPending
	t.shadowPending = 0

	spendable := t.shadowCash - t.cashFloor
	if spendable <= 0 {
		return
	}
	t.shadowShares += spendable / price
	t.shadowCash -= spendable
}

// updateDrawdown maintains peak equity and the open drawdown period. The
// period's start is fixed at the first below-peak tick; a new peak closes it.
func (t *Tracker) updateDrawdown(timestamp int64, equity float64) {
	if equity > t.peak {
		if t.openDD {
			t.drawdowns[len(t.drawdowns)-1].End = timestamp
			t.openDD = false
		}
		t.peak = equity
		return
	}
	if equity == t.peak {
		return
	}

	if !t.openDD {
		t.drawdowns = append(t.drawdowns, domain.DrawdownPeriod{
			Start:        timestamp,
			PeakEquity:   t.peak,
			TroughEquity: equity,
		})
		t.openDD = true
		return
	}
	dd := &t.drawdowns[len(t.drawdowns)-1]
	if equity < dd.TroughEquity {
		dd.TroughEquity = equity
	}
}

// updateMonthly stores the last equity observed in each month.
func (t *Tracker) updateMonthly(timestamp int64, equity float64) {
	key := calendar.MonthKey(timestamp)
	if _, seen := t.monthEquity[key]; !seen {
		t.monthOrder = append(t.monthOrder, key)
	}
	t.monthEquity[key] = equity
}

// TradeCount returns the number of fills observed so far.
func (t *Tracker) TradeCount() int {
	return t.tradeCount
}

// Report assembles the final metrics block. finalEquity is the run's
// closing equity.
func (t *Tracker) Report(finalEquity float64) *domain.MetricsReport {
	report := &domain.MetricsReport{
		TradeCount:       t.tradeCount,
		BuyAndHoldEquity: t.shadowCash + t.shadowPending + t.shadowShares*t.lastPrice,
		Drawdowns:        append([]domain.DrawdownPeriod(nil), t.drawdowns...),
	}

	// Max % and max $ drawdowns can come from different periods.
	for _, dd := range t.drawdowns {
		dollars := dd.PeakEquity - dd.TroughEquity
		if dollars > report.MaxDrawdownDollars {
			report.MaxDrawdownDollars = dollars
		}
		if dd.PeakEquity > 0 {
			pct := dollars / dd.PeakEquity * 100
			if pct > report.MaxDrawdownPct {
				report.MaxDrawdownPct = pct
			}
		}
	}

	if t.contributed > 0 {
		report.TotalReturnPct = (finalEquity - t.contributed) / t.contributed * 100
	}

	months := append([]string(nil), t.monthOrder...)
	sort.Strings(months)

	var prev float64
	for i, m := range months {
		equity := t.monthEquity[m]
		entry := domain.MonthlyReturn{Month: m, Equity: equity}
		if i > 0 && prev != 0 {
			entry.ChangePct = (equity - prev) / prev * 100
		}
		report.MonthlyReturns = append(report.MonthlyReturns, entry)
		prev = equity
	}

	// Month-over-month deltas start at the second month.
	if len(months) >= 2 {
		best := report.MonthlyReturns[1].ChangePct
		worst := best
		for _, mr := range report.MonthlyReturns[2:] {
			if mr.ChangePct > best {
				best = mr.ChangePct
			}
			if mr.ChangePct < worst {
				worst = mr.ChangePct
			}
		}
		report.BestMonthPct = best
		report.WorstMonthPct = worst
	} else {
		// Under one month of data there is nothing to compare against.
		report.BestMonthPct = report.TotalReturnPct
		report.WorstMonthPct = report.TotalReturnPct
	}

	return report
}
