package domain

// Bar is a single minute-resolution price observation.
type Bar struct {
	Timestamp int64 // Unix ms
	Price     float64
}

// PricePoint is a compacted intraday observation inside a DayBlob.
// Offsets are milliseconds from the blob's day start (UTC midnight).
type PricePoint struct {
	OffsetMs uint32
	Price    float64
}
