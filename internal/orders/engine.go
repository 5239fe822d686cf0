// Package orders implements the grid-trading order state machine: layered
// buy/sell triggers at percentage offsets, fills that spawn follow-up
// orders, and the gap filter that bounds working-set growth.
package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"grid-trading-lab/internal/calendar"
	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/idhash"
)

// moneyPrecision is the fixed decimal precision for cash and share math.
// Spends and share counts round DOWN at this precision so a fill can never
// overspend.
const moneyPrecision = 4

// Engine owns the working set of buy/sell triggers and the trade books for
// one run. Not safe for concurrent use; each run owns its own instance.
type Engine struct {
	cfg     *domain.SessionConfig
	capital *domain.CapitalState
	exec    FillExecutor
	gate    SellGate

	buys  []*domain.OrderAction
	sells []*domain.SellAction

	open    []*domain.OpenTrade
	history []*domain.TradeHistoryRecord

	lastPrice float64
	seq       int

	listeners []func(FillEvent)
}

// NewEngine creates an engine seeded with the sentinel first order: a buy
// with trigger -1 and direction higher, which fires on the first bar.
func NewEngine(cfg *domain.SessionConfig, capital *domain.CapitalState, exec FillExecutor) *Engine {
	e := &Engine{
		cfg:     cfg,
		capital: capital,
		exec:    exec,
	}
	e.buys = append(e.buys, &domain.OrderAction{
		ID:           e.nextOrderID(string(domain.DirectionHigher), domain.SentinelTriggerPrice),
		TriggerPrice: domain.SentinelTriggerPrice,
		Direction:    domain.DirectionHigher,
	})
	return e
}

// SetGate installs the sell gate (PDT compliance engine).
func (e *Engine) SetGate(gate SellGate) {
	e.gate = gate
}

// Subscribe registers a fill event listener.
func (e *Engine) Subscribe(fn func(FillEvent)) {
	e.listeners = append(e.listeners, fn)
}

// MarkPrice records the latest observed price for mark-to-market equity.
func (e *Engine) MarkPrice(price float64) {
	e.lastPrice = price
}

// TryBuy evaluates buy triggers at the current price and executes the first
// triggered one. Returns nil when nothing fired or the fill was rejected by
// the cash floor.
func (e *Engine) TryBuy(ctx context.Context, price float64, timestamp int64) (*FillEvent, error) {
	e.lastPrice = price

	for i, order := range e.buys {
		if !order.Triggered(price) {
			continue
		}
		return e.fillBuy(ctx, i, order, price, timestamp)
	}
	return nil, nil
}

// TrySell evaluates sell triggers at the current price. Sells are
// additionally gated by the compliance engine; a blocked sell stays in the
// working set and other triggered sells are still considered.
func (e *Engine) TrySell(ctx context.Context, price float64, timestamp int64) (*FillEvent, error) {
	e.lastPrice = price

	for i, order := range e.sells {
		if !order.Triggered(price) {
			continue
		}
		if e.gate != nil && !e.gate.IsTradingAllowed(timestamp, domain.TradeTypeSell, order.OriginatingTradeID) {
			continue
		}
		return e.fillSell(ctx, i, order, price, timestamp)
	}
	return nil, nil
}

// fillBuy spends cash×capitalPct, rounded down, and spawns the replacement
// buy plus the paired sell. The fill is rejected entirely (no partial fill)
// when cash would fall below the floor.
func (e *Engine) fillBuy(ctx context.Context, idx int, order *domain.OrderAction, price float64, timestamp int64) (*FillEvent, error) {
	spend := floorMoney(e.capital.Cash * e.cfg.CapitalPct / 100)
	if spend <= 0 || price <= 0 {
		return nil, nil
	}
	shares := floorMoney(spend / price)
	if shares <= 0 {
		return nil, nil
	}
	cost := shares * price
	if e.capital.Cash-cost < e.cfg.CashFloor {
		return nil, nil
	}

	if err := e.exec.ExecuteBuy(ctx, e.cfg.Symbol, shares, price, timestamp); err != nil {
		return nil, fmt.Errorf("execute buy: %w", err)
	}

	e.capital.Cash -= cost

	tradeID := e.nextTradeID(domain.TradeTypeBuy, timestamp)
	e.open = append(e.open, &domain.OpenTrade{
		ID:         tradeID,
		EntryPrice: price,
		Shares:     shares,
		Timestamp:  timestamp,
	})
	e.history = append(e.history, &domain.TradeHistoryRecord{
		ID:        tradeID,
		Type:      domain.TradeTypeBuy,
		Shares:    shares,
		Price:     price,
		Timestamp: timestamp,
	})

	// Consume the filled order, then maintain the grid: a replacement buy
	// below the fill and a paired sell above it.
	e.buys = append(e.buys[:idx], e.buys[idx+1:]...)
	e.addBuy(price*(1-e.cfg.BuyBelowPct/100), domain.DirectionBelow)
	e.addSell(price*(1+e.cfg.SellAbovePct/100), shares, tradeID)

	if e.cfg.GapFilterEnabled {
		e.buys = mergeCloseOrders(e.buys, e.cfg.OrderGapPct)
	}

	event := FillEvent{
		TradeID:   tradeID,
		Side:      domain.TradeTypeBuy,
		Price:     price,
		Shares:    shares,
		Timestamp: timestamp,
	}
	e.notify(event, timestamp)
	return &event, nil
}

// fillSell credits the proceeds, closes the matching position and spawns
// TWO buys: one below (normal dip-buying resumes) and one above (the
// grid-follow rule that keeps the strategy active through uptrends).
func (e *Engine) fillSell(ctx context.Context, idx int, order *domain.SellAction, price float64, timestamp int64) (*FillEvent, error) {
	if err := e.exec.ExecuteSell(ctx, e.cfg.Symbol, order.Shares, price, timestamp); err != nil {
		return nil, fmt.Errorf("execute sell: %w", err)
	}

	e.capital.Cash += order.Shares * price
	e.closeOpenTrade(order.OriginatingTradeID)

	tradeID := e.nextTradeID(domain.TradeTypeSell, timestamp)
	e.history = append(e.history, &domain.TradeHistoryRecord{
		ID:            tradeID,
		Type:          domain.TradeTypeSell,
		Shares:        order.Shares,
		Price:         price,
		Timestamp:     timestamp,
		ClosesTradeID: order.OriginatingTradeID,
	})

	e.sells = append(e.sells[:idx], e.sells[idx+1:]...)
	e.addBuy(price*(1-e.cfg.BuyBelowPct/100), domain.DirectionBelow)
	e.addBuy(price*(1+e.cfg.BuyAfterSellPct/100), domain.DirectionHigher)

	if e.cfg.GapFilterEnabled {
		e.buys = mergeCloseOrders(e.buys, e.cfg.OrderGapPct)
	}

	event := FillEvent{
		TradeID:       tradeID,
		Side:          domain.TradeTypeSell,
		Price:         price,
		Shares:        order.Shares,
		Timestamp:     timestamp,
		ClosesTradeID: order.OriginatingTradeID,
	}
	e.notify(event, timestamp)
	return &event, nil
}

func (e *Engine) notify(event FillEvent, timestamp int64) {
	if e.gate != nil {
		e.gate.OnFill(timestamp)
	}
	for _, fn := range e.listeners {
		fn(event)
	}
}

func (e *Engine) addBuy(trigger float64, direction domain.Direction) {
	trigger = roundMoney(trigger)
	e.buys = append(e.buys, &domain.OrderAction{
		ID:           e.nextOrderID(string(direction), trigger),
		TriggerPrice: trigger,
		Direction:    direction,
	})
}

func (e *Engine) addSell(trigger, shares float64, originatingTradeID string) {
	trigger = roundMoney(trigger)
	e.sells = append(e.sells, &domain.SellAction{
		OrderAction: domain.OrderAction{
			ID:           e.nextOrderID(string(domain.DirectionHigher), trigger),
			TriggerPrice: trigger,
			Direction:    domain.DirectionHigher,
		},
		Shares:             shares,
		OriginatingTradeID: originatingTradeID,
	})
}

func (e *Engine) closeOpenTrade(tradeID string) {
	for i, t := range e.open {
		if t.ID == tradeID {
			e.open = append(e.open[:i], e.open[i+1:]...)
			return
		}
	}
}

func (e *Engine) nextTradeID(side domain.TradeType, timestamp int64) string {
	e.seq++
	return idhash.ComputeTradeID(e.cfg.Symbol, string(side), timestamp, e.seq)
}

func (e *Engine) nextOrderID(direction string, trigger float64) string {
	e.seq++
	return idhash.ComputeOrderID(e.cfg.Symbol, direction, trigger, e.seq)
}

// OpenShares returns the total share count across open positions.
func (e *Engine) OpenShares() float64 {
	var total float64
	for _, t := range e.open {
		total += t.Shares
	}
	return total
}

// Equity marks open positions at the last observed price.
// Implements the compliance engine's account view; the error return exists
// for live feeds and is always nil here.
func (e *Engine) Equity(_ int64) (float64, error) {
	return e.capital.Equity(e.OpenShares(), e.lastPrice), nil
}

// OpenTrades returns the open position book.
func (e *Engine) OpenTrades() []*domain.OpenTrade {
	return e.open
}

// History returns the append-only trade log.
func (e *Engine) History() []*domain.TradeHistoryRecord {
	return e.history
}

// Buys returns the pending buy working set.
func (e *Engine) Buys() []*domain.OrderAction {
	return e.buys
}

// Sells returns the pending sell working set.
func (e *Engine) Sells() []*domain.SellAction {
	return e.sells
}

// RescaleBefore divides every stored order/trade price dated before cutoff
// by factor. Called when split reconciliation discovers new splits. Pending
// triggers all derive from pre-split prices, so they are rescaled as a set;
// only the sentinel is exempt.
func (e *Engine) RescaleBefore(cutoff time.Time, factor float64) {
	cutoffMs := calendar.Day(cutoff).UnixMilli()
	for _, t := range e.open {
		if t.Timestamp < cutoffMs {
			t.EntryPrice /= factor
			t.Shares *= factor
		}
	}
	for _, r := range e.history {
		if r.Timestamp < cutoffMs {
			r.Price /= factor
			r.Shares *= factor
		}
	}
	for _, o := range e.buys {
		if !o.Sentinel() {
			o.TriggerPrice = roundMoney(o.TriggerPrice / factor)
		}
	}
	for _, s := range e.sells {
		s.TriggerPrice = roundMoney(s.TriggerPrice / factor)
		s.Shares *= factor
	}
}

// floorMoney rounds x DOWN at the fixed money precision.
func floorMoney(x float64) float64 {
	v, _ := decimal.NewFromFloat(x).RoundFloor(moneyPrecision).Float64()
	return v
}

// roundMoney rounds x to the nearest value at the fixed money precision.
// Trigger prices pass through here so a sell spawned by a buy at 100 with a
// 10% offset fires at exactly 110, not 110.00000000000001.
func roundMoney(x float64) float64 {
	v, _ := decimal.NewFromFloat(x).Round(moneyPrecision).Float64()
	return v
}
