package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"grid-trading-lab/internal/calendar"
	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

// RangeStore implements storage.RangeStore using PostgreSQL.
type RangeStore struct {
	pool *Pool
}

// NewRangeStore creates a new RangeStore.
func NewRangeStore(pool *Pool) *RangeStore {
	return &RangeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RangeStore = (*RangeStore)(nil)

// splitRow is the JSON shape splits are persisted in.
type splitRow struct {
	EffectiveDate string  `json:"effective_date"` // YYYY-MM-DD
	Factor        float64 `json:"factor"`
}

// Get retrieves the range row for a symbol. Returns ErrNotFound if missing.
func (s *RangeStore) Get(ctx context.Context, symbol string) (*domain.SymbolRange, error) {
	query := `
		SELECT symbol, have_from, have_to, first_available_day, splits, last_split_check
		FROM symbol_ranges
		WHERE symbol = $1
	`

	var r domain.SymbolRange
	var haveFrom, haveTo, firstDay, lastCheck *time.Time
	var splitsJSON []byte

	err := s.pool.QueryRow(ctx, query, symbol).Scan(
		&r.Symbol, &haveFrom, &haveTo, &firstDay, &splitsJSON, &lastCheck,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("select symbol range: %w", err)
	}

	r.HaveFrom = normalizeDay(haveFrom)
	r.HaveTo = normalizeDay(haveTo)
	r.FirstAvailableDay = normalizeDay(firstDay)
	r.LastSplitCheck = lastCheck

	if len(splitsJSON) > 0 {
		var rows []splitRow
		if err := json.Unmarshal(splitsJSON, &rows); err != nil {
			return nil, fmt.Errorf("decode splits: %w", err)
		}
		r.Splits = make([]domain.Split, 0, len(rows))
		for _, row := range rows {
			day, err := time.Parse("2006-01-02", row.EffectiveDate)
			if err != nil {
				return nil, fmt.Errorf("parse split date %q: %w", row.EffectiveDate, err)
			}
			r.Splits = append(r.Splits, domain.Split{EffectiveDate: day, Factor: row.Factor})
		}
	}

	return &r, nil
}

// Upsert inserts or replaces the range row for a symbol.
func (s *RangeStore) Upsert(ctx context.Context, r *domain.SymbolRange) error {
	if r == nil || r.Symbol == "" {
		return storage.ErrInvalidInput
	}

	rows := make([]splitRow, 0, len(r.Splits))
	for _, sp := range r.Splits {
		rows = append(rows, splitRow{
			EffectiveDate: calendar.Day(sp.EffectiveDate).Format("2006-01-02"),
			Factor:        sp.Factor,
		})
	}
	splitsJSON, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode splits: %w", err)
	}

	query := `
		INSERT INTO symbol_ranges (
			symbol, have_from, have_to, first_available_day, splits, last_split_check
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol) DO UPDATE SET
			have_from = EXCLUDED.have_from,
			have_to = EXCLUDED.have_to,
			first_available_day = EXCLUDED.first_available_day,
			splits = EXCLUDED.splits,
			last_split_check = EXCLUDED.last_split_check
	`

	_, err = s.pool.Exec(ctx, query,
		r.Symbol, dayOrNil(r.HaveFrom), dayOrNil(r.HaveTo), dayOrNil(r.FirstAvailableDay),
		splitsJSON, r.LastSplitCheck,
	)
	if err != nil {
		return fmt.Errorf("upsert symbol range: %w", err)
	}
	return nil
}

func dayOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := calendar.Day(*t)
	return &d
}

func normalizeDay(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := calendar.Day(*t)
	return &d
}
