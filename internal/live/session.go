// Package live drives the grid strategy from a streamed quote feed. The
// order and compliance engines are the same ones the backtest uses; only
// the bar source and the fill executor differ.
package live

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"grid-trading-lab/internal/calendar"
	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/observability"
	"grid-trading-lab/internal/orders"
	"grid-trading-lab/internal/pdt"
	"grid-trading-lab/internal/quotes"
	"grid-trading-lab/internal/rangecache"
)

// ErrNoEquityFeed is returned by the account view when no broker equity
// feed is configured. The compliance gate treats it as "restricted".
var ErrNoEquityFeed = errors.New("no equity feed configured")

// EquityFeed supplies broker-side account equity. An error return makes
// the compliance gate fail closed.
type EquityFeed interface {
	Equity(timestamp int64) (float64, error)
}

// accountView adapts the local trade books plus the broker equity feed to
// the compliance engine's account interface.
type accountView struct {
	engine *orders.Engine
	feed   EquityFeed
}

func (v *accountView) Equity(timestamp int64) (float64, error) {
	if v.feed == nil {
		return 0, ErrNoEquityFeed
	}
	return v.feed.Equity(timestamp)
}

func (v *accountView) OpenTrades() []*domain.OpenTrade {
	return v.engine.OpenTrades()
}

func (v *accountView) History() []*domain.TradeHistoryRecord {
	return v.engine.History()
}

var _ pdt.Account = (*accountView)(nil)

// SplitChecker reconciles upstream stock splits against local state at most
// once per day. *rangecache.Manager implements it.
type SplitChecker interface {
	CheckAndRefreshSplits(ctx context.Context, symbol string, rescale rangecache.TradeRescaler) (*domain.SymbolRange, error)
}

// Session runs the strategy against a live quote stream. The caller
// supplies the FillExecutor that places real orders; the session never
// talks to a broker itself.
type Session struct {
	cfg     *domain.SessionConfig
	capital *domain.CapitalState
	engine  *orders.Engine
	gate    *pdt.Engine

	splits       SplitChecker
	lastSplitDay time.Time
}

// NewSession wires the engines for live trading. feed may be nil, in which
// case every gated sell is blocked until a feed is available.
func NewSession(cfg *domain.SessionConfig, exec orders.FillExecutor, feed EquityFeed) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	capital := &domain.CapitalState{Cash: cfg.StartingCapital}
	engine := orders.NewEngine(cfg, capital, exec)
	gate := pdt.New(&accountView{engine: engine, feed: feed})
	engine.SetGate(gate)

	return &Session{
		cfg:     cfg,
		capital: capital,
		engine:  engine,
		gate:    gate,
	}, nil
}

// SetSplitChecker installs the once-per-day split reconciliation hook. A
// multi-day session carries trades and pending triggers across splits, so
// the check runs on the first quote of each new day.
func (s *Session) SetSplitChecker(c SplitChecker) {
	s.splits = c
}

// Engine exposes the order engine, e.g. for fill subscriptions.
func (s *Session) Engine() *orders.Engine {
	return s.engine
}

// Capital exposes the session's capital state.
func (s *Session) Capital() *domain.CapitalState {
	return s.capital
}

// Run consumes the quote stream until the context is cancelled or the
// stream closes. Quotes for other symbols are ignored.
func (s *Session) Run(ctx context.Context, stream <-chan quotes.Quote) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case quote, ok := <-stream:
			if !ok {
				return nil
			}
			if quote.Symbol != s.cfg.Symbol {
				continue
			}
			if err := s.step(ctx, quote); err != nil {
				return err
			}
		}
	}
}

func (s *Session) step(ctx context.Context, quote quotes.Quote) error {
	observability.DefaultMetrics.QuotesReceived.Inc()
	s.maybeRefreshSplits(ctx, quote.Timestamp)

	if fill, err := s.engine.TryBuy(ctx, quote.Price, quote.Timestamp); err != nil {
		return fmt.Errorf("buy at %.4f: %w", quote.Price, err)
	} else if fill != nil {
		log.Printf("live: bought %.4f %s at %.4f", fill.Shares, quote.Symbol, fill.Price)
	}

	if fill, err := s.engine.TrySell(ctx, quote.Price, quote.Timestamp); err != nil {
		return fmt.Errorf("sell at %.4f: %w", quote.Price, err)
	} else if fill != nil {
		log.Printf("live: sold %.4f %s at %.4f", fill.Shares, quote.Symbol, fill.Price)
	}

	s.capital.MarkToMarket(s.engine.OpenShares(), quote.Price)
	return nil
}

// maybeRefreshSplits runs split reconciliation on the first quote of each
// UTC day. The checker rescales trades and pending triggers through
// Engine.RescaleBefore; a failed check is logged and retried on the next
// day boundary.
func (s *Session) maybeRefreshSplits(ctx context.Context, timestamp int64) {
	if s.splits == nil {
		return
	}
	quoteDay := calendar.Day(time.UnixMilli(timestamp).UTC())
	if quoteDay.Equal(s.lastSplitDay) {
		return
	}
	s.lastSplitDay = quoteDay

	if _, err := s.splits.CheckAndRefreshSplits(ctx, s.cfg.Symbol, s.engine.RescaleBefore); err != nil {
		log.Printf("live: split check failed: %v", err)
	}
}
