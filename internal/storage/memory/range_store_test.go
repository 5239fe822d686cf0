package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

func TestRangeStore_NotFound(t *testing.T) {
	store := NewRangeStore()

	_, err := store.Get(context.Background(), "MISSING")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRangeStore_UpsertAndGet(t *testing.T) {
	store := NewRangeStore()
	ctx := context.Background()

	from := day(2025, time.January, 6)
	to := day(2025, time.January, 10)
	r := &domain.SymbolRange{
		Symbol:   "TEST",
		HaveFrom: &from,
		HaveTo:   &to,
		Splits:   []domain.Split{{EffectiveDate: day(2024, time.June, 10), Factor: 2}},
	}
	if err := store.Upsert(ctx, r); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, "TEST")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.HaveFrom.Equal(from) || !got.HaveTo.Equal(to) {
		t.Error("Coverage interval mismatch")
	}
	if len(got.Splits) != 1 || got.Splits[0].Factor != 2 {
		t.Error("Splits mismatch")
	}

	// Mutating the returned copy must not affect the store.
	got.Splits[0].Factor = 99
	again, _ := store.Get(ctx, "TEST")
	if again.Splits[0].Factor != 2 {
		t.Error("Store returned a shared split slice")
	}
}

func TestRangeStore_UpsertReplaces(t *testing.T) {
	store := NewRangeStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, &domain.SymbolRange{Symbol: "TEST"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	from := day(2025, time.January, 6)
	if err := store.Upsert(ctx, &domain.SymbolRange{Symbol: "TEST", HaveFrom: &from, HaveTo: &from}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, "TEST")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.HaveFrom == nil || !got.HaveFrom.Equal(from) {
		t.Error("Expected replaced coverage")
	}
}
