package pdt

import (
	"errors"
	"testing"
	"time"

	"grid-trading-lab/internal/domain"
)

// fakeAccount is a scripted Account view.
type fakeAccount struct {
	equity    float64
	equityErr error
	open      []*domain.OpenTrade
	history   []*domain.TradeHistoryRecord
}

func (a *fakeAccount) Equity(_ int64) (float64, error) {
	return a.equity, a.equityErr
}

func (a *fakeAccount) OpenTrades() []*domain.OpenTrade {
	return a.open
}

func (a *fakeAccount) History() []*domain.TradeHistoryRecord {
	return a.history
}

func ts(y int, m time.Month, d, hour int) int64 {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC).UnixMilli()
}

// tradingDay builds a same-day buy+sell pair (one round trip).
func tradingDay(id string, y int, m time.Month, d int) []*domain.TradeHistoryRecord {
	return []*domain.TradeHistoryRecord{
		{ID: id + "-buy", Type: domain.TradeTypeBuy, Shares: 1, Price: 100, Timestamp: ts(y, m, d, 14)},
		{ID: id + "-sell", Type: domain.TradeTypeSell, Shares: 1, Price: 101, Timestamp: ts(y, m, d, 15), ClosesTradeID: id + "-buy"},
	}
}

func TestIsTradingAllowed_BuysAlwaysAllowed(t *testing.T) {
	engine := New(&fakeAccount{equity: 0})

	if !engine.IsTradingAllowed(ts(2025, time.January, 8, 15), domain.TradeTypeBuy, "") {
		t.Error("Buys must always be allowed")
	}
}

func TestIsTradingAllowed_AboveThresholdUnrestricted(t *testing.T) {
	account := &fakeAccount{equity: 30000}
	engine := New(account)

	// Even with a saturated window, an above-threshold account sells freely.
	for d := 6; d <= 8; d++ {
		account.history = append(account.history, tradingDay("t", 2025, time.January, d)...)
		engine.OnFill(ts(2025, time.January, d, 15))
	}

	open := &domain.OpenTrade{ID: "today", Timestamp: ts(2025, time.January, 8, 14)}
	account.open = append(account.open, open)
	if !engine.IsTradingAllowed(ts(2025, time.January, 8, 16), domain.TradeTypeSell, "today") {
		t.Error("Above-threshold account must not be restricted")
	}
}

func TestIsTradingAllowed_BlocksSameDayCloseAtCap(t *testing.T) {
	// 3 round trips already in the window, equity below threshold.
	account := &fakeAccount{equity: 10000}
	engine := New(account)

	// Mon/Tue/Wed Jan 6-8 each contribute one round trip.
	for i, d := range []int{6, 7, 8} {
		account.history = append(account.history, tradingDay(string(rune('a'+i)), 2025, time.January, d)...)
		engine.OnFill(ts(2025, time.January, d, 15))
	}
	if got := engine.WindowRoundTrips(ts(2025, time.January, 8, 16)); got != 3 {
		t.Fatalf("Expected 3 window round trips, got %d", got)
	}

	// A sell closing a position opened today must be blocked.
	account.open = []*domain.OpenTrade{
		{ID: "opened-today", Timestamp: ts(2025, time.January, 8, 14)},
		{ID: "opened-earlier", Timestamp: ts(2025, time.January, 2, 14)},
	}
	if engine.IsTradingAllowed(ts(2025, time.January, 8, 16), domain.TradeTypeSell, "opened-today") {
		t.Error("Same-day close at the cap must be blocked")
	}

	// A sell closing a position opened 6 days ago must be allowed.
	if !engine.IsTradingAllowed(ts(2025, time.January, 8, 16), domain.TradeTypeSell, "opened-earlier") {
		t.Error("Closing an old position must be allowed even at the cap")
	}
}

func TestWindow_NeverOlderThanFiveBusinessDays(t *testing.T) {
	account := &fakeAccount{equity: 10000}
	engine := New(account)

	// Fill on 10 consecutive business days (Jan 6-10, 13-17 2025).
	days := []int{6, 7, 8, 9, 10, 13, 14, 15, 16, 17}
	for i, d := range days {
		account.history = append(account.history, tradingDay(string(rune('a'+i)), 2025, time.January, d)...)
		engine.OnFill(ts(2025, time.January, d, 15))
	}

	entries := engine.Days()
	if len(entries) > 5 {
		t.Fatalf("Window holds %d entries after pruning, max is 5", len(entries))
	}

	// Every surviving entry is within 5 business days of Jan 17 (i.e. >= Jan 13).
	cutoff := time.Date(2025, time.January, 13, 0, 0, 0, 0, time.UTC)
	for _, e := range entries {
		if e.Date.Before(cutoff) {
			t.Errorf("Entry %v is older than the trailing window", e.Date)
		}
	}

	// The gating sum only sees the window.
	if got := engine.WindowRoundTrips(ts(2025, time.January, 17, 16)); got != 5 {
		t.Errorf("Expected 5 round trips in window, got %d", got)
	}
}

func TestRoundTrips_OnlySameDayCloseCounts(t *testing.T) {
	// A buy on Jan 7 sold on Jan 8 is NOT a round trip.
	account := &fakeAccount{equity: 10000}
	account.history = []*domain.TradeHistoryRecord{
		{ID: "b1", Type: domain.TradeTypeBuy, Shares: 1, Price: 100, Timestamp: ts(2025, time.January, 7, 14)},
		{ID: "s1", Type: domain.TradeTypeSell, Shares: 1, Price: 105, Timestamp: ts(2025, time.January, 8, 14), ClosesTradeID: "b1"},
	}
	engine := New(account)
	engine.OnFill(ts(2025, time.January, 8, 14))

	if got := engine.WindowRoundTrips(ts(2025, time.January, 8, 15)); got != 0 {
		t.Errorf("Overnight close counted as round trip: %d", got)
	}
}

func TestRoundTrips_FIFOWhenUntagged(t *testing.T) {
	// Start-of-day position + same-day buy; an untagged sell matches FIFO
	// (the older position), so it is not a round trip.
	account := &fakeAccount{equity: 10000}
	account.history = []*domain.TradeHistoryRecord{
		{ID: "old", Type: domain.TradeTypeBuy, Shares: 1, Price: 100, Timestamp: ts(2025, time.January, 6, 14)},
		{ID: "new", Type: domain.TradeTypeBuy, Shares: 1, Price: 99, Timestamp: ts(2025, time.January, 8, 14)},
		{ID: "sell", Type: domain.TradeTypeSell, Shares: 1, Price: 101, Timestamp: ts(2025, time.January, 8, 15)},
	}
	engine := New(account)
	engine.OnFill(ts(2025, time.January, 8, 15))

	if got := engine.WindowRoundTrips(ts(2025, time.January, 8, 16)); got != 0 {
		t.Errorf("FIFO sell against start-of-day position counted as round trip: %d", got)
	}

	// A second untagged sell now matches the position opened today.
	account.history = append(account.history, &domain.TradeHistoryRecord{
		ID: "sell2", Type: domain.TradeTypeSell, Shares: 1, Price: 102, Timestamp: ts(2025, time.January, 8, 16),
	})
	engine.OnFill(ts(2025, time.January, 8, 16))
	if got := engine.WindowRoundTrips(ts(2025, time.January, 8, 17)); got != 1 {
		t.Errorf("Expected 1 round trip after closing the same-day position, got %d", got)
	}
}

func TestIsTradingAllowed_FailsClosedOnFeedError(t *testing.T) {
	account := &fakeAccount{equityErr: errors.New("broker feed down")}
	engine := New(account)

	if engine.IsTradingAllowed(ts(2025, time.January, 8, 15), domain.TradeTypeSell, "any") {
		t.Error("Engine must fail closed when the equity feed is unavailable")
	}
}
