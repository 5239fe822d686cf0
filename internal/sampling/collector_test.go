package sampling

import (
	"testing"
	"time"

	"grid-trading-lab/internal/domain"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func TestIntervalFor_HorizonBuckets(t *testing.T) {
	cases := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int64
	}{
		{"two weeks", d(2025, time.January, 6), d(2025, time.January, 20), intervalFiveMin},
		{"three months", d(2025, time.January, 6), d(2025, time.April, 6), intervalHour},
		{"nine months", d(2025, time.January, 6), d(2025, time.October, 6), intervalFourHrs},
		{"two years", d(2024, time.January, 6), d(2026, time.January, 6), intervalDay},
	}
	for _, tc := range cases {
		if got := IntervalFor(tc.start, tc.end); got != tc.want {
			t.Errorf("%s: interval %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestObserve_IgnoresOutsideTradingHours(t *testing.T) {
	c := NewCollector(d(2025, time.January, 6), d(2025, time.January, 20))

	// Saturday, and a weekday pre-market tick.
	c.Observe(time.Date(2025, time.January, 4, 15, 0, 0, 0, time.UTC).UnixMilli(), 100, 1000, 1000)
	c.Observe(time.Date(2025, time.January, 6, 9, 0, 0, 0, time.UTC).UnixMilli(), 100, 1000, 1000)

	if n := len(c.Series().Samples); n != 0 {
		t.Errorf("Expected no samples outside trading hours, got %d", n)
	}
}

func TestObserve_SamplesAtInterval(t *testing.T) {
	c := NewCollector(d(2025, time.January, 6), d(2025, time.January, 20)) // 5-min interval

	base := time.Date(2025, time.January, 6, 14, 0, 0, 0, time.UTC).UnixMilli()
	for i := 0; i < 10; i++ { // one tick per minute
		c.Observe(base+int64(i)*60000, 100+float64(i), 1000, 1000)
	}

	samples := c.Series().Samples
	// First tick plus the +5m boundary; later ticks fall inside the interval.
	if len(samples) != 2 {
		t.Fatalf("Expected 2 samples (t0, +5m), got %d", len(samples))
	}
	if samples[1].Timestamp-samples[0].Timestamp < 5*60000 {
		t.Errorf("Samples closer than the interval: %d ms apart", samples[1].Timestamp-samples[0].Timestamp)
	}
}

func TestObserve_BackfillsGapsWithLastKnown(t *testing.T) {
	c := NewCollector(d(2025, time.January, 6), d(2025, time.January, 20)) // 5-min interval

	base := time.Date(2025, time.January, 6, 14, 0, 0, 0, time.UTC).UnixMilli()
	c.Observe(base, 100, 1000, 400)
	c.Observe(base+60000, 101, 1010, 400)
	// 16-minute silence, then a tick: the +5m/+10m/+15m boundaries are
	// back-filled with the last-known values.
	c.Observe(base+17*60000, 105, 1050, 400)

	samples := c.Series().Samples
	if len(samples) != 5 {
		t.Fatalf("Expected 5 samples (t0, 3 back-fills, t+17m), got %d", len(samples))
	}
	for _, s := range samples[1:4] {
		if s.Price != 101 || s.Equity != 1010 {
			t.Errorf("Back-fill sample at %d carries %f/%f, want last-known 101/1010", s.Timestamp, s.Price, s.Equity)
		}
	}
	if samples[4].Price != 105 {
		t.Errorf("Final sample price %f, want 105", samples[4].Price)
	}
}

func TestObserve_NoBackfillAcrossInactiveDays(t *testing.T) {
	c := NewCollector(d(2025, time.January, 6), d(2025, time.December, 31)) // 1-day interval

	// Activity on Tue Jan 7 and then nothing until Fri Jan 10: Jan 8-9 were
	// market-closed, so no samples may be fabricated for them.
	c.Observe(time.Date(2025, time.January, 7, 14, 0, 0, 0, time.UTC).UnixMilli(), 100, 1000, 1000)
	c.Observe(time.Date(2025, time.January, 10, 14, 0, 0, 0, time.UTC).UnixMilli(), 105, 1050, 1000)

	for _, s := range c.Series().Samples {
		day := time.UnixMilli(s.Timestamp).UTC().Day()
		if day == 8 || day == 9 {
			t.Errorf("Fabricated sample on inactive day Jan %d", day)
		}
	}
}

func TestOnFill_ForcesExactSampleAndMarker(t *testing.T) {
	c := NewCollector(d(2025, time.January, 6), d(2025, time.January, 20))

	base := time.Date(2025, time.January, 6, 14, 0, 0, 0, time.UTC).UnixMilli()
	c.Observe(base, 100, 1000, 1000)

	// A fill 30s later, far inside the 5-min interval, still samples.
	fillTs := base + 30000
	c.OnFill(fillTs, 99.5, 995, 400, 6, domain.TradeTypeBuy, "trade-1")

	series := c.Series()
	if len(series.Markers) != 1 {
		t.Fatalf("Expected 1 marker, got %d", len(series.Markers))
	}
	marker := series.Markers[0]
	if marker.Timestamp != fillTs || marker.TradeID != "trade-1" {
		t.Errorf("Marker %+v not aligned with the fill", marker)
	}

	var aligned bool
	for _, s := range series.Samples {
		if s.Timestamp == fillTs {
			aligned = true
		}
	}
	if !aligned {
		t.Error("Fill must force an exact-timestamp sample")
	}
}
