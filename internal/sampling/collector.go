// Package sampling builds the chart time series for a run: an
// adaptive-resolution price/equity/cash sampler plus exact-timestamp
// execution markers.
package sampling

import (
	"time"

	"grid-trading-lab/internal/calendar"
	"grid-trading-lab/internal/domain"
)

// Sampling intervals per horizon bucket.
const (
	intervalFiveMin = 5 * 60 * 1000
	intervalHour    = 60 * 60 * 1000
	intervalFourHrs = 4 * 60 * 60 * 1000
	intervalDay     = 24 * 60 * 60 * 1000
)

// IntervalFor picks the sampling interval (ms) from the run horizon so the
// chart payload stays roughly constant regardless of span.
func IntervalFor(start, end time.Time) int64 {
	days := calendar.DaysBetween(start, end)
	switch {
	case days < 31:
		return intervalFiveMin
	case days < 183:
		return intervalHour
	case days < 366:
		return intervalFourHrs
	default:
		return intervalDay
	}
}

// Collector accumulates chart samples for one run. Not safe for concurrent
// use.
type Collector struct {
	intervalMs int64

	samples []domain.SamplePoint
	markers []domain.ExecutionMarker

	lastSampleTs int64
	prev         domain.SamplePoint
	hasPrev      bool
	activeDays   map[int64]bool // UTC-midnight unix of days with observed ticks
}

// NewCollector creates a collector for the given run window.
func NewCollector(start, end time.Time) *Collector {
	return &Collector{
		intervalMs: IntervalFor(start, end),
		activeDays: make(map[int64]bool),
	}
}

// IntervalMs returns the chosen sampling interval.
func (c *Collector) IntervalMs() int64 {
	return c.intervalMs
}

// Observe feeds one bar tick. Ticks outside regular weekday trading hours
// are ignored. Gaps between ticks are back-filled at interval boundaries
// with the last known values, but only on days that had observed activity,
// so market-closed days are never fabricated.
func (c *Collector) Observe(timestamp int64, price, equity, cash float64) {
	if !calendar.IsTradingHours(timestamp) {
		return
	}
	c.activeDays[calendar.DayOf(timestamp).Unix()] = true

	point := domain.SamplePoint{Timestamp: timestamp, Price: price, Equity: equity, Cash: cash}

	if c.lastSampleTs == 0 {
		c.emit(point)
		return
	}
	if timestamp-c.lastSampleTs < c.intervalMs {
		c.prev = point
		c.hasPrev = true
		return
	}

	for b := c.lastSampleTs + c.intervalMs; b < timestamp; b += c.intervalMs {
		if !calendar.IsTradingHours(b) || !c.activeDays[calendar.DayOf(b).Unix()] {
			continue
		}
		if !c.hasPrev {
			continue
		}
		fill := c.prev
		fill.Timestamp = b
		c.samples = append(c.samples, fill)
	}

	c.emit(point)
}

// OnFill forces an exact-timestamp sample and records the execution marker,
// so markers always align with a charted point.
func (c *Collector) OnFill(timestamp int64, price, equity, cash, shares float64, side domain.TradeType, tradeID string) {
	c.activeDays[calendar.DayOf(timestamp).Unix()] = true
	c.emit(domain.SamplePoint{Timestamp: timestamp, Price: price, Equity: equity, Cash: cash})
	c.markers = append(c.markers, domain.ExecutionMarker{
		Timestamp: timestamp,
		Type:      side,
		Price:     price,
		Shares:    shares,
		TradeID:   tradeID,
	})
}

func (c *Collector) emit(p domain.SamplePoint) {
	c.samples = append(c.samples, p)
	c.lastSampleTs = p.Timestamp
	c.prev = p
	c.hasPrev = true
}

// Series returns the assembled chart series.
func (c *Collector) Series() *domain.ChartSeries {
	return &domain.ChartSeries{
		IntervalMs: c.intervalMs,
		Samples:    c.samples,
		Markers:    c.markers,
	}
}
