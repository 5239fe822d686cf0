// Package backtest orchestrates a simulation run: it establishes cache
// coverage, streams cached bars through the order engine in month-sized
// chunks and assembles the final result.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"grid-trading-lab/internal/calendar"
	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/idhash"
	"grid-trading-lab/internal/observability"
	"grid-trading-lab/internal/rangecache"
	"grid-trading-lab/internal/storage"
)

// Validation errors surfaced before any work is performed.
var (
	ErrStartBeforeFirstData = errors.New("start date precedes the first available data")
	ErrEndTooRecent         = errors.New("end date falls inside the provider settlement buffer")
)

// barsPerTradingDay is the minute-bar count of a regular session, used only
// for the initial progress estimate.
const barsPerTradingDay = 390

// DefaultSettlementBufferDays keeps run windows away from the provider's
// settlement lag.
const DefaultSettlementBufferDays = 5

// Options configures a Runner.
type Options struct {
	Cache *rangecache.Manager
	Bars  storage.BarStore

	// Samples, when set, receives the sampled chart series of finished
	// runs. Persist failures are logged, not fatal.
	Samples storage.SampleStore

	Progress ProgressFunc

	// SettlementBufferDays overrides DefaultSettlementBufferDays.
	SettlementBufferDays int

	// Clock is injectable for deterministic tests.
	Clock func() time.Time
}

// Runner executes simulation runs. Safe to reuse across runs; all per-run
// state lives in SimulationState.
type Runner struct {
	cache      *rangecache.Manager
	bars       storage.BarStore
	samples    storage.SampleStore
	progress   ProgressFunc
	bufferDays int
	clock      func() time.Time
}

// NewRunner creates a runner.
func NewRunner(opts Options) *Runner {
	r := &Runner{
		cache:      opts.Cache,
		bars:       opts.Bars,
		samples:    opts.Samples,
		progress:   opts.Progress,
		bufferDays: opts.SettlementBufferDays,
		clock:      opts.Clock,
	}
	if r.bufferDays <= 0 {
		r.bufferDays = DefaultSettlementBufferDays
	}
	if r.clock == nil {
		r.clock = func() time.Time { return time.Now().UTC() }
	}
	return r
}

func (r *Runner) emit(stage Stage, message string, progress float64) {
	if r.progress != nil {
		r.progress(Event{Stage: stage, Message: message, Progress: progress})
	}
}

// Run executes one simulation. Cancellation is a distinguished non-error
// outcome: the returned result has Cancelled set and carries no metrics.
func (r *Runner) Run(ctx context.Context, cfg *domain.SessionConfig) (*domain.BacktestResult, error) {
	started := r.clock()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	latestEnd := calendar.Day(r.clock()).AddDate(0, 0, -r.bufferDays)
	if calendar.Day(cfg.EndDate).After(latestEnd) {
		return nil, fmt.Errorf("%w: latest allowed end is %s", ErrEndTooRecent, latestEnd.Format("2006-01-02"))
	}

	r.emit(StageInitialize, "initializing run", 0)
	state := newSimulationState(cfg)

	// Split reconciliation first: a discovered split invalidates coverage
	// and rescales any stored trade prices before we fetch anything.
	rng, err := r.cache.CheckAndRefreshSplits(ctx, cfg.Symbol, state.Engine.RescaleBefore)
	if err != nil {
		return r.failOrCancel(state, started, err)
	}

	if rng.FirstAvailableDay == nil {
		r.emit(StageSearchingFirstDay, "searching first available day", 0)
		rng, err = r.cache.EnsureFirstAvailableDay(ctx, cfg.Symbol)
		if err != nil {
			return r.failOrCancel(state, started, err)
		}
	}
	if rng.FirstAvailableDay != nil && calendar.Day(cfg.StartDate).Before(*rng.FirstAvailableDay) {
		return nil, fmt.Errorf("%w: data starts %s", ErrStartBeforeFirstData, rng.FirstAvailableDay.Format("2006-01-02"))
	}

	if err := r.ensureCoverage(ctx, cfg, rng); err != nil {
		return r.failOrCancel(state, started, err)
	}

	if err := r.replay(ctx, state); err != nil {
		return r.failOrCancel(state, started, err)
	}

	return r.finalize(ctx, state, started)
}

// ensureCoverage fetches the cache gaps for the run window.
func (r *Runner) ensureCoverage(ctx context.Context, cfg *domain.SessionConfig, rng *domain.SymbolRange) error {
	left, right := rangecache.ComputeMissingRanges(cfg.StartDate, cfg.EndDate, rng.HaveFrom, rng.HaveTo)

	if left != nil {
		if _, err := r.cache.FillMissingRanges(ctx, cfg.Symbol, left, nil, func(done, total int) {
			r.emit(StageDownloadingBefore, "downloading earlier history", pct(done, total))
		}); err != nil {
			return err
		}
	}
	if right != nil {
		if _, err := r.cache.FillMissingRanges(ctx, cfg.Symbol, nil, right, func(done, total int) {
			r.emit(StageDownloadingAfter, "downloading recent history", pct(done, total))
		}); err != nil {
			return err
		}
	}
	return nil
}

// replay streams cached bars through the engines in month-sized chunks.
// Cancellation is checked at chunk boundaries only.
func (r *Runner) replay(ctx context.Context, state *SimulationState) error {
	cfg := state.Config
	estimate := estimateBars(cfg.StartDate, cfg.EndDate)
	skipBefore := calendar.SessionOpen(cfg.StartDate)

	chunkStart := calendar.Day(cfg.StartDate)
	firstChunk := true
	for !chunkStart.After(cfg.EndDate) {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunkEnd := calendar.PrevDay(calendar.NextMonthStart(chunkStart))
		if chunkEnd.After(cfg.EndDate) {
			chunkEnd = calendar.Day(cfg.EndDate)
		}

		blobs, err := r.bars.GetRange(ctx, cfg.Symbol, chunkStart, chunkEnd)
		if err != nil {
			return fmt.Errorf("load chunk %s: %w", chunkStart.Format("2006-01"), err)
		}
		for _, blob := range blobs {
			for _, bar := range blob.Bars() {
				if firstChunk && bar.Timestamp < skipBefore {
					continue
				}
				if err := r.step(ctx, state, bar); err != nil {
					return err
				}
			}
		}
		firstChunk = false

		// Refine the estimate from observed density; it never drops below
		// the processed count so progress cannot run backwards.
		elapsed := calendar.DaysBetween(cfg.StartDate, chunkEnd)
		total := calendar.DaysBetween(cfg.StartDate, cfg.EndDate)
		if elapsed > 0 && state.BarsProcessed > 0 {
			refined := state.BarsProcessed * total / elapsed
			if refined > state.BarsProcessed {
				estimate = refined
			} else {
				estimate = state.BarsProcessed
			}
		}
		r.emit(StageWorkingOnChunk, "processing "+chunkStart.Format("2006-01"), pct(state.BarsProcessed, estimate))

		chunkStart = calendar.NextMonthStart(chunkStart)
	}
	return nil
}

// step advances one bar: contributions due by date, then order triggers,
// then observers with the post-bar snapshot.
func (r *Runner) step(ctx context.Context, state *SimulationState, bar domain.Bar) error {
	state.applyContributions(calendar.DayOf(bar.Timestamp))

	if _, err := state.Engine.TryBuy(ctx, bar.Price, bar.Timestamp); err != nil {
		return err
	}
	if _, err := state.Engine.TrySell(ctx, bar.Price, bar.Timestamp); err != nil {
		return err
	}

	equity := state.Capital.MarkToMarket(state.Engine.OpenShares(), bar.Price)
	state.Tracker.Observe(bar.Timestamp, bar.Price, equity)
	state.Collector.Observe(bar.Timestamp, bar.Price, equity, state.Capital.Cash)
	state.BarsProcessed++
	observability.DefaultMetrics.BarsProcessed.Inc()
	return nil
}

// finalize assembles the completed result and persists samples when a
// sample sink is configured.
func (r *Runner) finalize(ctx context.Context, state *SimulationState, started time.Time) (*domain.BacktestResult, error) {
	finalEquity, _ := state.Engine.Equity(r.clock().UnixMilli())
	elapsed := r.clock().Sub(started)

	result := &domain.BacktestResult{
		RunID:         idhash.NewRunID(),
		Symbol:        state.Config.Symbol,
		FinalCash:     state.Capital.Cash,
		FinalEquity:   finalEquity,
		Contributed:   state.Capital.Contributed,
		BarsProcessed: state.BarsProcessed,
		ElapsedMs:     elapsed.Milliseconds(),
		Chart:         state.Collector.Series(),
		Metrics:       state.Tracker.Report(finalEquity),
	}

	if r.samples != nil {
		if err := r.samples.InsertSamples(ctx, result.RunID, result.Symbol, result.Chart.Samples); err != nil {
			log.Printf("backtest: persisting samples for run %s failed: %v", result.RunID, err)
		}
	}

	observability.RecordRun("completed", elapsed.Seconds())
	r.emit(StageCompleted, "run completed", 100)
	return result, nil
}

// failOrCancel translates context cancellation into the distinguished
// cancelled outcome; everything else propagates as a failure.
func (r *Runner) failOrCancel(state *SimulationState, started time.Time, err error) (*domain.BacktestResult, error) {
	if !errors.Is(err, context.Canceled) {
		observability.RecordRun("failed", r.clock().Sub(started).Seconds())
		return nil, err
	}

	observability.RecordRun("cancelled", r.clock().Sub(started).Seconds())
	// A cancelled result carries capital figures but no metrics or chart:
	// partial analytics must never read as final.
	return &domain.BacktestResult{
		RunID:         idhash.NewRunID(),
		Symbol:        state.Config.Symbol,
		Cancelled:     true,
		FinalCash:     state.Capital.Cash,
		Contributed:   state.Capital.Contributed,
		BarsProcessed: state.BarsProcessed,
		ElapsedMs:     r.clock().Sub(started).Milliseconds(),
	}, nil
}

// estimateBars guesses total bar count from the weekday span. Used only for
// progress percentages.
func estimateBars(start, end time.Time) int {
	days := 0
	for d := calendar.Day(start); !d.After(calendar.Day(end)); d = calendar.NextDay(d) {
		if calendar.IsBusinessDay(d) {
			days++
		}
	}
	return days * barsPerTradingDay
}

func pct(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(done) / float64(total) * 100
	if p > 100 {
		p = 100
	}
	return p
}
