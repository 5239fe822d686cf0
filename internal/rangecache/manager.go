// Package rangecache maintains the incremental day-blob cache for a symbol:
// it computes coverage gaps, fetches only what is missing, discovers the
// first day the provider has data for, and reconciles stock splits against
// cached prices.
package rangecache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"grid-trading-lab/internal/calendar"
	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/marketdata"
	"grid-trading-lab/internal/storage"
)

// Defaults for fetch-loop behavior.
const (
	DefaultRequestDelay       = 250 * time.Millisecond
	DefaultFlushThreshold     = 25
	DefaultFirstDayBufferDays = 5
	DefaultMaxSearchIters     = 40

	// probeRadius widens each binary-search midpoint to a 9-day window so
	// isolated provider gaps (holidays) don't produce false negatives.
	probeRadius = 4
)

// searchEpoch is the lower bound of first-day discovery.
var searchEpoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// TradeRescaler adjusts historical trade/order prices when a split is
// discovered: every price dated before cutoff is divided by factor.
type TradeRescaler func(cutoff time.Time, factor float64)

// DayProgress reports fetch-loop advancement: days fetched so far out of
// the total for the current gap.
type DayProgress func(fetched, total int)

// Options configures a Manager.
type Options struct {
	BarStore   storage.BarStore
	RangeStore storage.RangeStore
	Bars       marketdata.BarProvider
	Splits     marketdata.SplitProvider

	// RequestDelay is the courtesy pause between provider requests.
	// Zero means DefaultRequestDelay; negative disables the delay.
	RequestDelay time.Duration

	// FlushThreshold is the blob-bucket size that triggers a store flush.
	FlushThreshold int

	// FirstDayBufferDays keeps discovery away from the provider's
	// settlement lag at the recent edge.
	FirstDayBufferDays int

	// Clock is injectable for deterministic tests. Defaults to UTC now.
	Clock func() time.Time
}

// Manager owns the cache for all symbols of one store pair.
type Manager struct {
	bars       storage.BarStore
	ranges     storage.RangeStore
	provider   marketdata.BarProvider
	splits     marketdata.SplitProvider
	delay      time.Duration
	flushAt    int
	bufferDays int
	clock      func() time.Time
}

// NewManager creates a range/cache manager.
func NewManager(opts Options) *Manager {
	m := &Manager{
		bars:       opts.BarStore,
		ranges:     opts.RangeStore,
		provider:   opts.Bars,
		splits:     opts.Splits,
		delay:      opts.RequestDelay,
		flushAt:    opts.FlushThreshold,
		bufferDays: opts.FirstDayBufferDays,
		clock:      opts.Clock,
	}
	if m.delay == 0 {
		m.delay = DefaultRequestDelay
	}
	if m.delay < 0 {
		m.delay = 0
	}
	if m.flushAt <= 0 {
		m.flushAt = DefaultFlushThreshold
	}
	if m.bufferDays <= 0 {
		m.bufferDays = DefaultFirstDayBufferDays
	}
	if m.clock == nil {
		m.clock = func() time.Time { return time.Now().UTC() }
	}
	return m
}

// EnsureInitialized loads the symbol's range row, creating an empty one if
// the symbol has never been seen. Idempotent; called once at run start
// rather than hidden inside read paths.
func (m *Manager) EnsureInitialized(ctx context.Context, symbol string) (*domain.SymbolRange, error) {
	r, err := m.ranges.Get(ctx, symbol)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load symbol range: %w", err)
	}

	r = &domain.SymbolRange{Symbol: symbol}
	if err := m.ranges.Upsert(ctx, r); err != nil {
		return nil, fmt.Errorf("initialize symbol range: %w", err)
	}
	return r, nil
}

// ComputeMissingRanges returns the gaps between a requested window and the
// cached interval: at most one "left" gap before haveFrom and one "right"
// gap after haveTo. With nothing cached the entire request is the right
// gap. Pure and idempotent.
func ComputeMissingRanges(reqFrom, reqTo time.Time, haveFrom, haveTo *time.Time) (left, right *domain.MissingRange) {
	reqFrom = calendar.Day(reqFrom)
	reqTo = calendar.Day(reqTo)

	if haveFrom == nil || haveTo == nil {
		return nil, &domain.MissingRange{Start: reqFrom, End: reqTo}
	}

	if reqFrom.Before(*haveFrom) {
		end := calendar.PrevDay(*haveFrom)
		if end.After(reqTo) {
			end = reqTo
		}
		left = &domain.MissingRange{Start: reqFrom, End: end}
	}
	if reqTo.After(*haveTo) {
		start := calendar.NextDay(*haveTo)
		if start.Before(reqFrom) {
			start = reqFrom
		}
		right = &domain.MissingRange{Start: start, End: reqTo}
	}
	return left, right
}

// FillMissingRanges fetches the given gaps day-by-day and persists them:
// backward for the left gap so coverage grows contiguously from haveFrom,
// forward for the right gap. Blobs are bucketed and flushed at the
// threshold (or loop end); haveFrom/haveTo only ever widen. A day that
// errors is logged and skipped, not fatal; store failures propagate.
func (m *Manager) FillMissingRanges(ctx context.Context, symbol string, left, right *domain.MissingRange, progress DayProgress) (*domain.SymbolRange, error) {
	r, err := m.EnsureInitialized(ctx, symbol)
	if err != nil {
		return nil, err
	}

	total := 0
	if left != nil {
		total += left.Days()
	}
	if right != nil {
		total += right.Days()
	}
	fetched := 0

	if left != nil {
		if err := m.fillGap(ctx, r, left, false, total, &fetched, progress); err != nil {
			return nil, err
		}
	}
	if right != nil {
		if err := m.fillGap(ctx, r, right, true, total, &fetched, progress); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// fillGap walks one gap. forward=false walks End→Start so the covered
// interval stays contiguous with the existing haveFrom edge.
func (m *Manager) fillGap(ctx context.Context, r *domain.SymbolRange, gap *domain.MissingRange, forward bool, total int, fetched *int, progress DayProgress) error {
	day := gap.Start
	if !forward {
		day = gap.End
	}
	origin := day

	var bucket []*domain.DayBlob

	// Each flush covers the whole walked segment, origin through cursor:
	// from a cold cache a single extend at the cursor would record only the
	// last day and leave everything behind it looking uncovered.
	flush := func(cursor time.Time) error {
		if err := m.bars.UpsertBlobs(ctx, bucket); err != nil {
			return fmt.Errorf("flush blob bucket: %w", err)
		}
		bucket = bucket[:0]
		extendCoverage(r, origin)
		extendCoverage(r, cursor)
		if err := m.ranges.Upsert(ctx, r); err != nil {
			return fmt.Errorf("persist coverage: %w", err)
		}
		return nil
	}

	for {
		if forward && day.After(gap.End) {
			break
		}
		if !forward && day.Before(gap.Start) {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		blob, err := m.provider.FetchDayBars(ctx, r.Symbol, day)
		if err != nil {
			// One retry absorbs transient provider hiccups.
			blob, err = m.provider.FetchDayBars(ctx, r.Symbol, day)
		}
		switch {
		case err != nil:
			// Skip and leave the day missing. It still falls inside the
			// covered interval, so it is not refetched until the next cache
			// invalidation (coverage is one contiguous haveFrom/haveTo span).
			log.Printf("rangecache: fetch %s %s failed, skipping day: %v",
				r.Symbol, day.Format("2006-01-02"), err)
		case blob != nil:
			bucket = append(bucket, blob)
		}

		*fetched++
		if progress != nil {
			progress(*fetched, total)
		}

		if len(bucket) >= m.flushAt {
			if err := flush(day); err != nil {
				return err
			}
		}

		if forward {
			day = calendar.NextDay(day)
		} else {
			day = calendar.PrevDay(day)
		}

		if m.delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.delay):
			}
		}
	}

	end := gap.End
	if !forward {
		end = gap.Start
	}
	return flush(end)
}

// extendCoverage widens haveFrom/haveTo to include day. Monotonic: coverage
// never shrinks.
func extendCoverage(r *domain.SymbolRange, day time.Time) {
	d := calendar.Day(day)
	if r.HaveFrom == nil || d.Before(*r.HaveFrom) {
		r.HaveFrom = &d
	}
	if r.HaveTo == nil || d.After(*r.HaveTo) {
		to := d
		r.HaveTo = &to
	}
}

// FindFirstAvailableDay binary-searches the earliest day the provider has
// data for. Each midpoint is widened to a ±probeRadius window so isolated
// holidays don't read as "no data"; the search moves left on any hit in
// the window. The result is the earliest day seen across all probes, which
// is not necessarily a midpoint. Returns nil when no data was found within
// the iteration bound.
func (m *Manager) FindFirstAvailableDay(ctx context.Context, symbol string) (*time.Time, error) {
	lo := searchEpoch
	hi := calendar.Day(m.clock()).AddDate(0, 0, -m.bufferDays)
	if hi.Before(lo) {
		return nil, nil
	}

	var earliest *time.Time

	for iter := 0; iter < DefaultMaxSearchIters && !lo.After(hi); iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		span := int(hi.Sub(lo).Hours() / 24)
		mid := lo.AddDate(0, 0, span/2)

		hit := false
		for offset := -probeRadius; offset <= probeRadius; offset++ {
			probe := mid.AddDate(0, 0, offset)
			if probe.Before(lo) || probe.After(hi) {
				continue
			}
			blob, err := m.provider.FetchDayBars(ctx, symbol, probe)
			if err != nil {
				continue // probe failures read as misses
			}
			if blob != nil {
				hit = true
				if earliest == nil || probe.Before(*earliest) {
					p := probe
					earliest = &p
				}
			}
		}

		if hit {
			hi = calendar.PrevDay(*earliest)
		} else {
			lo = mid.AddDate(0, 0, probeRadius+1)
		}
	}

	return earliest, nil
}

// EnsureFirstAvailableDay runs first-day discovery when the range row does
// not carry one yet, and persists the result.
func (m *Manager) EnsureFirstAvailableDay(ctx context.Context, symbol string) (*domain.SymbolRange, error) {
	r, err := m.EnsureInitialized(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if r.FirstAvailableDay != nil {
		return r, nil
	}

	first, err := m.FindFirstAvailableDay(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if first == nil {
		return r, nil
	}
	r.FirstAvailableDay = first
	if err := m.ranges.Upsert(ctx, r); err != nil {
		return nil, fmt.Errorf("persist first available day: %w", err)
	}
	return r, nil
}

// CheckAndRefreshSplits reconciles cached splits against the provider, at
// most once per calendar day. On a detected change every cached blob for
// the symbol is deleted (prices are stale), historical trade/order prices
// are rescaled through the given rescaler, coverage is reset to null and
// first-day discovery is re-run. A failed split fetch skips the content
// update but still records that a check occurred, so provider outages
// don't cause check-storming.
func (m *Manager) CheckAndRefreshSplits(ctx context.Context, symbol string, rescale TradeRescaler) (*domain.SymbolRange, error) {
	r, err := m.EnsureInitialized(ctx, symbol)
	if err != nil {
		return nil, err
	}

	now := m.clock()
	if r.LastSplitCheck != nil && calendar.Day(*r.LastSplitCheck).Equal(calendar.Day(now)) {
		return r, nil
	}

	fetched, err := m.splits.FetchSplits(ctx, symbol)
	checkTime := now
	if err != nil {
		log.Printf("rangecache: split fetch for %s failed, keeping cached splits: %v", symbol, err)
		r.LastSplitCheck = &checkTime
		if err := m.ranges.Upsert(ctx, r); err != nil {
			return nil, fmt.Errorf("persist split check: %w", err)
		}
		return r, nil
	}

	// Future-dated splits are not actionable yet.
	today := calendar.Day(now)
	current := make([]domain.Split, 0, len(fetched))
	for _, s := range fetched {
		if !calendar.Day(s.EffectiveDate).After(today) {
			current = append(current, s)
		}
	}

	if splitsEqual(r.Splits, current) {
		r.LastSplitCheck = &checkTime
		if err := m.ranges.Upsert(ctx, r); err != nil {
			return nil, fmt.Errorf("persist split check: %w", err)
		}
		return r, nil
	}

	log.Printf("rangecache: split change detected for %s, invalidating cache", symbol)

	// Rescale stored trades/orders by each newly discovered split.
	if rescale != nil {
		for _, s := range current {
			if !containsSplit(r.Splits, s) {
				rescale(calendar.Day(s.EffectiveDate), s.Factor)
			}
		}
	}

	// Cached prices are stale: drop everything and force a full re-fetch.
	if err := m.bars.DeleteBySymbol(ctx, symbol); err != nil {
		return nil, fmt.Errorf("delete stale blobs: %w", err)
	}
	r.HaveFrom = nil
	r.HaveTo = nil
	r.Splits = current
	r.LastSplitCheck = &checkTime

	firstDay, err := m.FindFirstAvailableDay(ctx, symbol)
	if err != nil {
		return nil, err
	}
	r.FirstAvailableDay = firstDay

	if err := m.ranges.Upsert(ctx, r); err != nil {
		return nil, fmt.Errorf("persist refreshed range: %w", err)
	}
	return r, nil
}

// splitsEqual compares split sets order-insensitively by effective date and
// factor.
func splitsEqual(a, b []domain.Split) bool {
	if len(a) != len(b) {
		return false
	}
	for _, s := range a {
		if !containsSplit(b, s) {
			return false
		}
	}
	return true
}

func containsSplit(set []domain.Split, s domain.Split) bool {
	for _, candidate := range set {
		if calendar.Day(candidate.EffectiveDate).Equal(calendar.Day(s.EffectiveDate)) && candidate.Factor == s.Factor {
			return true
		}
	}
	return false
}
