package domain

// Direction indicates which side of the trigger price fires an order.
type Direction string

// Direction constants.
const (
	DirectionBelow  Direction = "below"  // fires when price <= trigger
	DirectionHigher Direction = "higher" // fires when price >= trigger
)

// TradeType distinguishes buy and sell records.
type TradeType string

// Trade type constants.
const (
	TradeTypeBuy  TradeType = "buy"
	TradeTypeSell TradeType = "sell"
)

// SentinelTriggerPrice marks the bootstrap buy order that always fires.
// Paired with DirectionHigher any positive price satisfies it.
const SentinelTriggerPrice = -1

// OrderAction is a pending buy trigger. Ephemeral: created by fills,
// destroyed by fills or by gap-filter merging.
type OrderAction struct {
	ID           string
	TriggerPrice float64
	Direction    Direction
}

// Sentinel reports whether this is the bootstrap seed order.
func (o *OrderAction) Sentinel() bool {
	return o.TriggerPrice < 0
}

// Triggered reports whether price satisfies the order's trigger.
func (o *OrderAction) Triggered(price float64) bool {
	switch o.Direction {
	case DirectionBelow:
		return price <= o.TriggerPrice
	case DirectionHigher:
		return price >= o.TriggerPrice
	}
	return false
}

// SellAction is a pending sell trigger, sized to a specific open trade.
type SellAction struct {
	OrderAction
	Shares             float64
	OriginatingTradeID string
}

// OpenTrade is one un-closed buy fill. Destroyed when its paired sell fills.
type OpenTrade struct {
	ID         string
	EntryPrice float64
	Shares     float64
	Timestamp  int64 // Unix ms of the opening fill
}

// TradeHistoryRecord is an immutable append-only log entry.
// Source of truth for PDT round-trip recomputation.
type TradeHistoryRecord struct {
	ID            string
	Type          TradeType
	Shares        float64
	Price         float64
	Timestamp     int64  // Unix ms
	ClosesTradeID string // set on sells that close a known position
}
