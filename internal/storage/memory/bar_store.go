package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"grid-trading-lab/internal/calendar"
	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]*domain.DayBlob // symbol -> day unix -> blob
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string]map[int64]*domain.DayBlob),
	}
}

// UpsertBlob inserts or replaces one day-blob.
func (s *BarStore) UpsertBlob(_ context.Context, b *domain.DayBlob) error {
	if b == nil || b.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertLocked(b)
	return nil
}

// UpsertBlobs inserts or replaces a batch of day-blobs.
func (s *BarStore) UpsertBlobs(_ context.Context, blobs []*domain.DayBlob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range blobs {
		if b == nil || b.Symbol == "" {
			return storage.ErrInvalidInput
		}
		s.upsertLocked(b)
	}
	return nil
}

func (s *BarStore) upsertLocked(b *domain.DayBlob) {
	days, ok := s.data[b.Symbol]
	if !ok {
		days = make(map[int64]*domain.DayBlob)
		s.data[b.Symbol] = days
	}

	clone := *b
	clone.Points = make([]domain.PricePoint, len(b.Points))
	copy(clone.Points, b.Points)
	days[calendar.Day(b.Day).Unix()] = &clone
}

// GetRange retrieves blobs for [from, to] inclusive, ordered by day ASC.
func (s *BarStore) GetRange(_ context.Context, symbol string, from, to time.Time) ([]*domain.DayBlob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fromUnix := calendar.Day(from).Unix()
	toUnix := calendar.Day(to).Unix()

	var result []*domain.DayBlob
	for dayUnix, b := range s.data[symbol] {
		if dayUnix < fromUnix || dayUnix > toUnix {
			continue
		}
		clone := *b
		clone.Points = make([]domain.PricePoint, len(b.Points))
		copy(clone.Points, b.Points)
		result = append(result, &clone)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Day.Before(result[j].Day)
	})

	return result, nil
}

// DeleteBySymbol removes every cached blob for a symbol.
func (s *BarStore) DeleteBySymbol(_ context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, symbol)
	return nil
}

var _ storage.BarStore = (*BarStore)(nil)
