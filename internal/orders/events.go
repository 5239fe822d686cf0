package orders

import "grid-trading-lab/internal/domain"

// FillEvent describes one executed fill. Consumed by the metrics tracker
// and the sample collector; the engine itself performs no I/O.
type FillEvent struct {
	TradeID       string
	Side          domain.TradeType
	Price         float64
	Shares        float64
	Timestamp     int64 // Unix ms
	ClosesTradeID string
}

// SellGate decides whether a sell may execute. Implemented by the PDT
// compliance engine; a nil gate permits everything.
type SellGate interface {
	// IsTradingAllowed reports whether a fill of the given side may
	// execute at timestamp. tradeID identifies the position a sell would
	// close; it is empty for buys.
	IsTradingAllowed(timestamp int64, side domain.TradeType, tradeID string) bool

	// OnFill notifies the gate that a fill executed, so it can refresh
	// its rolling window.
	OnFill(timestamp int64)
}
