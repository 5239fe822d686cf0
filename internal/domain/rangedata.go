package domain

import "time"

// Split is a corporate action: a multiplicative price/quantity adjustment
// applied retroactively to every cached price and every stored order/trade
// price dated before the effective date.
type Split struct {
	EffectiveDate time.Time // UTC midnight of the effective calendar day
	Factor        float64   // e.g. 2 for a 2-for-1 split
}

// SymbolRange is the authoritative description of what is cached for a
// symbol. HaveFrom/HaveTo is a single contiguous covered interval.
type SymbolRange struct {
	Symbol            string
	HaveFrom          *time.Time // nil when nothing is cached
	HaveTo            *time.Time
	FirstAvailableDay *time.Time // earliest day the provider has data for
	Splits            []Split
	LastSplitCheck    *time.Time
}

// Covered reports whether day falls inside the cached interval.
func (r *SymbolRange) Covered(day time.Time) bool {
	if r.HaveFrom == nil || r.HaveTo == nil {
		return false
	}
	return !day.Before(*r.HaveFrom) && !day.After(*r.HaveTo)
}

// MissingRange is a gap between a requested window and the cached interval.
// Start and End are inclusive calendar days.
type MissingRange struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of calendar days in the range, inclusive.
func (m *MissingRange) Days() int {
	return int(m.End.Sub(m.Start).Hours()/24) + 1
}

// DayBlob is one calendar day of compacted price observations, the unit of
// cache storage and split adjustment. Compression is applied at the
// persistence boundary, not here.
type DayBlob struct {
	Symbol         string
	Day            time.Time // UTC midnight
	FirstTimestamp int64     // Unix ms of the first observation
	LastTimestamp  int64     // Unix ms of the last observation
	RowCount       int
	Points         []PricePoint
}

// Bars expands the compacted points to absolute-timestamp bars.
func (b *DayBlob) Bars() []Bar {
	base := b.Day.UnixMilli()
	bars := make([]Bar, len(b.Points))
	for i, p := range b.Points {
		bars[i] = Bar{Timestamp: base + int64(p.OffsetMs), Price: p.Price}
	}
	return bars
}

// Rescale divides every price by factor, in place. Used when a newly
// discovered split invalidates cached prices.
func (b *DayBlob) Rescale(factor float64) {
	for i := range b.Points {
		b.Points[i].Price /= factor
	}
}
