package memory

import (
	"context"
	"sync"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

// SampleStore is an in-memory implementation of storage.SampleStore.
type SampleStore struct {
	mu   sync.RWMutex
	data map[string][]domain.SamplePoint // run id -> points
}

// NewSampleStore creates a new in-memory sample store.
func NewSampleStore() *SampleStore {
	return &SampleStore{
		data: make(map[string][]domain.SamplePoint),
	}
}

// InsertSamples appends the sampled points of a finished run.
func (s *SampleStore) InsertSamples(_ context.Context, runID, symbol string, points []domain.SamplePoint) error {
	if runID == "" || symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[runID] = append(s.data[runID], points...)
	return nil
}

// Samples returns the stored points for a run. Test helper.
func (s *SampleStore) Samples(runID string) []domain.SamplePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.SamplePoint, len(s.data[runID]))
	copy(result, s.data[runID])
	return result
}

var _ storage.SampleStore = (*SampleStore)(nil)
