// Package storage defines persistence interfaces for the bar cache and run
// output. Implementations live in the memory, postgres and clickhouse
// sub-packages. All access is keyed; no cross-key transactions are assumed,
// so callers must tolerate partial writes from a crashed flush.
package storage

import (
	"context"
	"time"

	"grid-trading-lab/internal/domain"
)

// BarStore persists day-blobs, the unit of cache storage.
type BarStore interface {
	// UpsertBlob inserts or replaces one day-blob.
	UpsertBlob(ctx context.Context, b *domain.DayBlob) error

	// UpsertBlobs inserts or replaces a batch of day-blobs.
	UpsertBlobs(ctx context.Context, blobs []*domain.DayBlob) error

	// GetRange retrieves blobs for [from, to] inclusive calendar days,
	// ordered by day ASC. Days without data are simply absent.
	GetRange(ctx context.Context, symbol string, from, to time.Time) ([]*domain.DayBlob, error)

	// DeleteBySymbol removes every cached blob for a symbol.
	// Used when a split invalidates all cached prices.
	DeleteBySymbol(ctx context.Context, symbol string) error
}

// RangeStore persists the per-symbol coverage description.
type RangeStore interface {
	// Get retrieves the range row for a symbol. Returns ErrNotFound when
	// the symbol has never been initialized.
	Get(ctx context.Context, symbol string) (*domain.SymbolRange, error)

	// Upsert inserts or replaces the range row for a symbol.
	Upsert(ctx context.Context, r *domain.SymbolRange) error
}

// SampleStore persists sampled chart series for offline analysis.
type SampleStore interface {
	// InsertSamples appends the sampled points of a finished run.
	InsertSamples(ctx context.Context, runID, symbol string, points []domain.SamplePoint) error
}
