package clickhouse

import (
	"context"
	"fmt"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

// SampleStore implements storage.SampleStore using ClickHouse.
// Sampled series are append-only analytics data, a natural MergeTree fit.
type SampleStore struct {
	conn *Conn
}

// NewSampleStore creates a new SampleStore.
func NewSampleStore(conn *Conn) *SampleStore {
	return &SampleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SampleStore = (*SampleStore)(nil)

// InsertSamples appends the sampled points of a finished run.
func (s *SampleStore) InsertSamples(ctx context.Context, runID, symbol string, points []domain.SamplePoint) error {
	if runID == "" || symbol == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO chart_samples (
			run_id, symbol, timestamp_ms, price, equity, cash
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(runID, symbol, uint64(p.Timestamp), p.Price, p.Equity, p.Cash)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetSamples retrieves the stored points of a run, ordered by timestamp ASC.
func (s *SampleStore) GetSamples(ctx context.Context, runID string) ([]domain.SamplePoint, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT timestamp_ms, price, equity, cash
		FROM chart_samples
		WHERE run_id = ?
		ORDER BY timestamp_ms ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("select samples: %w", err)
	}
	defer rows.Close()

	var result []domain.SamplePoint
	for rows.Next() {
		var ts uint64
		var p domain.SamplePoint
		if err := rows.Scan(&ts, &p.Price, &p.Equity, &p.Cash); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		p.Timestamp = int64(ts)
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}

	return result, nil
}
