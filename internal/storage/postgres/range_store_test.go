package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

func TestRangeStore_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRangeStore(pool)

	_, err := store.Get(context.Background(), "MISSING")
	require.True(t, errors.Is(err, storage.ErrNotFound), "expected ErrNotFound, got %v", err)
}

func TestRangeStore_UpsertAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRangeStore(pool)
	ctx := context.Background()

	checked := time.Date(2025, time.January, 10, 15, 4, 5, 0, time.UTC)
	r := &domain.SymbolRange{
		Symbol:            "TEST",
		HaveFrom:          ptr(day(2024, time.June, 3)),
		HaveTo:            ptr(day(2025, time.January, 10)),
		FirstAvailableDay: ptr(day(2010, time.March, 1)),
		Splits: []domain.Split{
			{EffectiveDate: day(2024, time.August, 12), Factor: 2},
			{EffectiveDate: day(2022, time.February, 28), Factor: 4},
		},
		LastSplitCheck: &checked,
	}
	require.NoError(t, store.Upsert(ctx, r))

	got, err := store.Get(ctx, "TEST")
	require.NoError(t, err)
	require.True(t, got.HaveFrom.Equal(*r.HaveFrom))
	require.True(t, got.HaveTo.Equal(*r.HaveTo))
	require.True(t, got.FirstAvailableDay.Equal(*r.FirstAvailableDay))
	require.Len(t, got.Splits, 2)
	require.Equal(t, 2.0, got.Splits[0].Factor)
	require.NotNil(t, got.LastSplitCheck)
}

func TestRangeStore_NullCoverageRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRangeStore(pool)
	ctx := context.Background()

	// A split reset writes null coverage; nulls must survive the round trip.
	require.NoError(t, store.Upsert(ctx, &domain.SymbolRange{
		Symbol:   "TEST",
		HaveFrom: ptr(day(2024, time.June, 3)),
		HaveTo:   ptr(day(2025, time.January, 10)),
	}))
	require.NoError(t, store.Upsert(ctx, &domain.SymbolRange{Symbol: "TEST"}))

	got, err := store.Get(ctx, "TEST")
	require.NoError(t, err)
	require.Nil(t, got.HaveFrom)
	require.Nil(t, got.HaveTo)
}
