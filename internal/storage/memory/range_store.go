package memory

import (
	"context"
	"sync"
	"time"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

// RangeStore is an in-memory implementation of storage.RangeStore.
type RangeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SymbolRange
}

// NewRangeStore creates a new in-memory range store.
func NewRangeStore() *RangeStore {
	return &RangeStore{
		data: make(map[string]*domain.SymbolRange),
	}
}

// Get retrieves the range row for a symbol. Returns ErrNotFound if missing.
func (s *RangeStore) Get(_ context.Context, symbol string) (*domain.SymbolRange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[symbol]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneRange(r), nil
}

// Upsert inserts or replaces the range row for a symbol.
func (s *RangeStore) Upsert(_ context.Context, r *domain.SymbolRange) error {
	if r == nil || r.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[r.Symbol] = cloneRange(r)
	return nil
}

func cloneRange(r *domain.SymbolRange) *domain.SymbolRange {
	clone := *r
	clone.HaveFrom = cloneTime(r.HaveFrom)
	clone.HaveTo = cloneTime(r.HaveTo)
	clone.FirstAvailableDay = cloneTime(r.FirstAvailableDay)
	clone.LastSplitCheck = cloneTime(r.LastSplitCheck)
	clone.Splits = make([]domain.Split, len(r.Splits))
	copy(clone.Splits, r.Splits)
	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

var _ storage.RangeStore = (*RangeStore)(nil)
