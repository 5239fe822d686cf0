// Package stub provides scripted market data providers for tests.
package stub

import (
	"context"
	"sync"
	"time"

	"grid-trading-lab/internal/calendar"
	"grid-trading-lab/internal/domain"
)

// BarProvider returns fixed in-memory day blobs. Days without an entry are
// reported as closed (nil blob). Days listed in Errs fail with that error.
// Implements marketdata.BarProvider.
type BarProvider struct {
	mu       sync.Mutex
	days     map[string]*domain.DayBlob // keyed by YYYY-MM-DD
	errs     map[string]error
	errsOnce map[string]error
	calls    int
}

// NewBarProvider creates a stub bar provider.
func NewBarProvider() *BarProvider {
	return &BarProvider{
		days:     make(map[string]*domain.DayBlob),
		errs:     make(map[string]error),
		errsOnce: make(map[string]error),
	}
}

// AddDay scripts a trading day with the given minute prices, one per minute
// starting at the regular session open.
func (p *BarProvider) AddDay(symbol string, day time.Time, prices []float64) {
	d := calendar.Day(day)
	open := calendar.SessionOpen(d)
	blob := &domain.DayBlob{
		Symbol:   symbol,
		Day:      d,
		RowCount: len(prices),
		Points:   make([]domain.PricePoint, len(prices)),
	}
	for i, price := range prices {
		ts := open + int64(i)*60000
		blob.Points[i] = domain.PricePoint{OffsetMs: uint32(ts - d.UnixMilli()), Price: price}
	}
	if len(prices) > 0 {
		blob.FirstTimestamp = open
		blob.LastTimestamp = open + int64(len(prices)-1)*60000
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.days[d.Format("2006-01-02")] = blob
}

// FailDay scripts a fetch error for a day.
func (p *BarProvider) FailDay(day time.Time, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[calendar.Day(day).Format("2006-01-02")] = err
}

// FailDayOnce scripts a fetch error consumed by the first fetch of the day;
// subsequent fetches succeed.
func (p *BarProvider) FailDayOnce(day time.Time, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errsOnce[calendar.Day(day).Format("2006-01-02")] = err
}

// FetchDayBars returns the scripted blob, nil for unscripted (closed) days.
func (p *BarProvider) FetchDayBars(_ context.Context, _ string, day time.Time) (*domain.DayBlob, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	key := calendar.Day(day).Format("2006-01-02")
	if err, ok := p.errsOnce[key]; ok {
		delete(p.errsOnce, key)
		return nil, err
	}
	if err, ok := p.errs[key]; ok {
		return nil, err
	}
	blob, ok := p.days[key]
	if !ok {
		return nil, nil
	}

	clone := *blob
	clone.Points = make([]domain.PricePoint, len(blob.Points))
	copy(clone.Points, blob.Points)
	return &clone, nil
}

// Calls returns the number of FetchDayBars invocations.
func (p *BarProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// SplitProvider returns fixed in-memory splits, or a scripted error.
// Implements marketdata.SplitProvider.
type SplitProvider struct {
	mu     sync.Mutex
	splits []domain.Split
	err    error
}

// NewSplitProvider creates a stub split provider.
func NewSplitProvider(splits []domain.Split) *SplitProvider {
	return &SplitProvider{splits: splits}
}

// SetSplits replaces the scripted splits.
func (p *SplitProvider) SetSplits(splits []domain.Split) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.splits = splits
	p.err = nil
}

// Fail scripts a fetch failure.
func (p *SplitProvider) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// FetchSplits returns the scripted splits or error.
func (p *SplitProvider) FetchSplits(_ context.Context, _ string) ([]domain.Split, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}
	result := make([]domain.Split, len(p.splits))
	copy(result, p.splits)
	return result, nil
}
