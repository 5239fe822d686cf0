// Package marketdata defines the external data provider boundary: minute
// bars for a single calendar day and corporate-action (split) feeds.
package marketdata

import (
	"context"
	"time"

	"grid-trading-lab/internal/domain"
)

// BarProvider fetches one calendar day of minute bars.
type BarProvider interface {
	// FetchDayBars returns the blob for a single day. A nil blob with a
	// nil error means the market was closed that day (holiday), which is
	// not an error condition.
	FetchDayBars(ctx context.Context, symbol string, day time.Time) (*domain.DayBlob, error)
}

// SplitProvider fetches the full split history for a symbol.
type SplitProvider interface {
	// FetchSplits returns all known splits for the symbol. An empty slice
	// means "confirmed no splits"; an error means the fetch itself failed
	// and the caller must not treat the result as authoritative.
	FetchSplits(ctx context.Context, symbol string) ([]domain.Split, error)
}
