package domain

import "time"

// PdtDay is one calendar day's round-trip count inside the trailing
// compliance window. Entries older than the window are dropped, never
// archived.
type PdtDay struct {
	Date       time.Time // UTC midnight
	RoundTrips int
}
