package backtest

import (
	"time"

	"grid-trading-lab/internal/calendar"
	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/metrics"
	"grid-trading-lab/internal/observability"
	"grid-trading-lab/internal/orders"
	"grid-trading-lab/internal/pdt"
	"grid-trading-lab/internal/sampling"
)

// SimulationState bundles everything one run mutates. Each run owns an
// isolated instance; concurrent runs share nothing.
type SimulationState struct {
	Config    *domain.SessionConfig
	Capital   *domain.CapitalState
	Engine    *orders.Engine
	Gate      *pdt.Engine
	Tracker   *metrics.Tracker
	Collector *sampling.Collector

	BarsProcessed    int
	nextContribution *time.Time
}

// newSimulationState wires the engines, gate and observers for one run.
func newSimulationState(cfg *domain.SessionConfig) *SimulationState {
	capital := &domain.CapitalState{Cash: cfg.StartingCapital}
	engine := orders.NewEngine(cfg, capital, orders.NewSimulatedExecutor())
	gate := pdt.New(engine)
	engine.SetGate(gate)

	tracker := metrics.NewTracker(cfg.StartingCapital, cfg.CashFloor)
	collector := sampling.NewCollector(cfg.StartDate, cfg.EndDate)

	state := &SimulationState{
		Config:    cfg,
		Capital:   capital,
		Engine:    engine,
		Gate:      gate,
		Tracker:   tracker,
		Collector: collector,
	}
	if cfg.Contribution != nil {
		due := calendar.Day(cfg.StartDate).AddDate(0, 0, cfg.Contribution.FrequencyDays)
		state.nextContribution = &due
	}

	engine.Subscribe(func(ev orders.FillEvent) {
		tracker.OnFill()
		equity, _ := engine.Equity(ev.Timestamp)
		collector.OnFill(ev.Timestamp, ev.Price, equity, capital.Cash, ev.Shares, ev.Side, ev.TradeID)
		observability.RecordFill(string(ev.Side))
	})

	return state
}

// applyContributions injects every contribution due by the given day.
func (s *SimulationState) applyContributions(day time.Time) {
	if s.Config.Contribution == nil {
		return
	}
	for s.nextContribution != nil && !day.Before(*s.nextContribution) {
		s.Capital.Contribute(s.Config.Contribution.Amount)
		s.Tracker.OnContribution(s.Config.Contribution.Amount)
		next := s.nextContribution.AddDate(0, 0, s.Config.Contribution.FrequencyDays)
		s.nextContribution = &next
	}
}
