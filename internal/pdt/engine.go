// Package pdt implements the Pattern-Day-Trader compliance gate: a rolling
// 5-business-day round-trip counter that blocks sells which would complete
// a same-day round trip in an under-threshold account.
package pdt

import (
	"sort"
	"time"

	"grid-trading-lab/internal/calendar"
	"grid-trading-lab/internal/domain"
)

// Regulatory constants.
const (
	// EquityThreshold is the account equity above which PDT restrictions
	// do not apply.
	EquityThreshold = 25000.0

	// WindowBusinessDays is the trailing window length.
	WindowBusinessDays = 5

	// MaxRoundTrips is the number of round trips permitted inside the
	// window for an under-threshold account.
	MaxRoundTrips = 3
)

// Account is the engine's view of the trading account. The backtest feeds
// it from simulation state; a live deployment feeds it from broker data and
// returns an error when the feed is unavailable, which makes the engine
// fail closed.
type Account interface {
	// Equity returns account equity marked at the given time.
	Equity(timestamp int64) (float64, error)

	// OpenTrades returns the current open position book.
	OpenTrades() []*domain.OpenTrade

	// History returns the append-only trade log in insertion order.
	History() []*domain.TradeHistoryRecord
}

// Engine tracks per-day round-trip counts over the trailing window.
// Not safe for concurrent use; each run owns its own instance.
type Engine struct {
	account   Account
	threshold float64
	days      []*domain.PdtDay // sorted by date ASC, pruned to the window
}

// New creates a compliance engine over the given account view.
func New(account Account) *Engine {
	return &Engine{account: account, threshold: EquityThreshold}
}

// WithThreshold overrides the equity threshold. Used by tests.
func (e *Engine) WithThreshold(threshold float64) *Engine {
	e.threshold = threshold
	return e
}

// IsTradingAllowed reports whether a fill may execute. Buys are always
// allowed. A sell is blocked only if the account is under the equity
// threshold, the trailing-window round-trip sum is already at the cap, and
// completing this sell would itself be a same-day round trip.
func (e *Engine) IsTradingAllowed(timestamp int64, side domain.TradeType, tradeID string) bool {
	if side == domain.TradeTypeBuy {
		return true
	}

	equity, err := e.account.Equity(timestamp)
	if err != nil {
		// Feed unavailable: fail closed rather than silently permit.
		return false
	}
	if equity >= e.threshold {
		return true
	}

	if e.windowRoundTrips(timestamp) < MaxRoundTrips {
		return true
	}

	return !e.wouldBeSameDayRoundTrip(timestamp, tradeID)
}

// OnFill refreshes the window after any fill: recompute today's round-trip
// count, upsert the day entry, prune entries outside the trailing window
// and cap the list length.
func (e *Engine) OnFill(timestamp int64) {
	day := calendar.DayOf(timestamp)
	count := e.roundTripsForDay(day)

	updated := false
	for _, d := range e.days {
		if d.Date.Equal(day) {
			d.RoundTrips = count
			updated = true
			break
		}
	}
	if !updated {
		e.days = append(e.days, &domain.PdtDay{Date: day, RoundTrips: count})
		sort.Slice(e.days, func(i, j int) bool {
			return e.days[i].Date.Before(e.days[j].Date)
		})
	}

	e.prune(day)
}

// prune drops entries outside the trailing window and caps the list.
func (e *Engine) prune(current time.Time) {
	cutoff := calendar.WindowStart(current, WindowBusinessDays)
	kept := e.days[:0]
	for _, d := range e.days {
		if !d.Date.Before(cutoff) {
			kept = append(kept, d)
		}
	}
	e.days = kept

	if len(e.days) > WindowBusinessDays {
		e.days = e.days[len(e.days)-WindowBusinessDays:]
	}
}

// WindowRoundTrips returns the round-trip sum across the trailing window
// anchored at the day containing timestamp.
func (e *Engine) WindowRoundTrips(timestamp int64) int {
	return e.windowRoundTrips(timestamp)
}

func (e *Engine) windowRoundTrips(timestamp int64) int {
	current := calendar.DayOf(timestamp)
	cutoff := calendar.WindowStart(current, WindowBusinessDays)

	sum := 0
	for _, d := range e.days {
		if !d.Date.Before(cutoff) && !d.Date.After(current) {
			sum += d.RoundTrips
		}
	}
	return sum
}

// Days returns the current window entries. Test helper.
func (e *Engine) Days() []*domain.PdtDay {
	return e.days
}

// wouldBeSameDayRoundTrip reports whether selling the given position now
// closes a position opened on the same calendar day. The open-positions
// book is consulted first, then the trade history.
func (e *Engine) wouldBeSameDayRoundTrip(timestamp int64, tradeID string) bool {
	if tradeID == "" {
		return false
	}

	for _, t := range e.account.OpenTrades() {
		if t.ID == tradeID {
			return calendar.SameDay(t.Timestamp, timestamp)
		}
	}
	for _, r := range e.account.History() {
		if r.ID == tradeID && r.Type == domain.TradeTypeBuy {
			return calendar.SameDay(r.Timestamp, timestamp)
		}
	}
	return false
}

// roundTripsForDay reconstructs the round-trip count for one calendar day
// from trade history: positions open at start-of-day are separated from
// positions opened during the day, then the day's trades are walked in
// timestamp order. A sell counts as a round trip only when it closes
// shares from a position opened the same day, matched by explicit
// ClosesTradeID when present and FIFO otherwise.
func (e *Engine) roundTripsForDay(day time.Time) int {
	dayStart := day.UnixMilli()
	dayEnd := calendar.NextDay(day).UnixMilli()

	history := make([]*domain.TradeHistoryRecord, len(e.account.History()))
	copy(history, e.account.History())
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp < history[j].Timestamp
	})

	type position struct {
		id       string
		openedAt int64
	}
	var open []position

	count := 0
	for _, r := range history {
		if r.Timestamp >= dayEnd {
			break
		}
		switch r.Type {
		case domain.TradeTypeBuy:
			open = append(open, position{id: r.ID, openedAt: r.Timestamp})
		case domain.TradeTypeSell:
			idx := -1
			if r.ClosesTradeID != "" {
				for i, p := range open {
					if p.id == r.ClosesTradeID {
						idx = i
						break
					}
				}
			} else if len(open) > 0 {
				idx = 0 // FIFO
			}
			if idx < 0 {
				continue
			}
			closed := open[idx]
			open = append(open[:idx], open[idx+1:]...)

			if r.Timestamp >= dayStart && closed.openedAt >= dayStart {
				count++
			}
		}
	}
	return count
}
