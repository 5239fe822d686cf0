package postgres

import (
	"context"
	"fmt"
	"time"

	"grid-trading-lab/internal/blob"
	"grid-trading-lab/internal/calendar"
	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

// BarStore implements storage.BarStore using PostgreSQL. Day-blob points
// are compressed with the blob codec before hitting the wire.
type BarStore struct {
	pool *Pool
}

// NewBarStore creates a new BarStore.
func NewBarStore(pool *Pool) *BarStore {
	return &BarStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

const upsertBlobQuery = `
	INSERT INTO day_blobs (
		symbol, day, first_timestamp, last_timestamp, row_count, points
	) VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (symbol, day) DO UPDATE SET
		first_timestamp = EXCLUDED.first_timestamp,
		last_timestamp = EXCLUDED.last_timestamp,
		row_count = EXCLUDED.row_count,
		points = EXCLUDED.points
`

// UpsertBlob inserts or replaces one day-blob.
func (s *BarStore) UpsertBlob(ctx context.Context, b *domain.DayBlob) error {
	if b == nil || b.Symbol == "" {
		return storage.ErrInvalidInput
	}

	data, err := blob.Encode(b.Points)
	if err != nil {
		return fmt.Errorf("encode day blob: %w", err)
	}

	_, err = s.pool.Exec(ctx, upsertBlobQuery,
		b.Symbol, calendar.Day(b.Day), b.FirstTimestamp, b.LastTimestamp, b.RowCount, data,
	)
	if err != nil {
		return fmt.Errorf("upsert day blob: %w", err)
	}
	return nil
}

// UpsertBlobs inserts or replaces a batch of day-blobs in one transaction.
func (s *BarStore) UpsertBlobs(ctx context.Context, blobs []*domain.DayBlob) error {
	if len(blobs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, b := range blobs {
		if b == nil || b.Symbol == "" {
			return storage.ErrInvalidInput
		}

		data, err := blob.Encode(b.Points)
		if err != nil {
			return fmt.Errorf("encode day blob: %w", err)
		}

		_, err = tx.Exec(ctx, upsertBlobQuery,
			b.Symbol, calendar.Day(b.Day), b.FirstTimestamp, b.LastTimestamp, b.RowCount, data,
		)
		if err != nil {
			return fmt.Errorf("upsert day blob in batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetRange retrieves blobs for [from, to] inclusive, ordered by day ASC.
func (s *BarStore) GetRange(ctx context.Context, symbol string, from, to time.Time) ([]*domain.DayBlob, error) {
	query := `
		SELECT symbol, day, first_timestamp, last_timestamp, row_count, points
		FROM day_blobs
		WHERE symbol = $1 AND day >= $2 AND day <= $3
		ORDER BY day ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, calendar.Day(from), calendar.Day(to))
	if err != nil {
		return nil, fmt.Errorf("select day blobs: %w", err)
	}
	defer rows.Close()

	var result []*domain.DayBlob
	for rows.Next() {
		var b domain.DayBlob
		var data []byte
		if err := rows.Scan(&b.Symbol, &b.Day, &b.FirstTimestamp, &b.LastTimestamp, &b.RowCount, &data); err != nil {
			return nil, fmt.Errorf("scan day blob: %w", err)
		}
		b.Day = calendar.Day(b.Day)
		b.Points, err = blob.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode day blob %s/%s: %w", b.Symbol, b.Day.Format("2006-01-02"), err)
		}
		result = append(result, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate day blobs: %w", err)
	}

	return result, nil
}

// DeleteBySymbol removes every cached blob for a symbol.
func (s *BarStore) DeleteBySymbol(ctx context.Context, symbol string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM day_blobs WHERE symbol = $1`, symbol); err != nil {
		return fmt.Errorf("delete day blobs: %w", err)
	}
	return nil
}
