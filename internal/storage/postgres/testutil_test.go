package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL container, applies migrations and returns
// a pool plus a cleanup function.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	applyMigrations(t, ctx, pool)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// applyMigrations runs the same DDL the embedded migrations carry. The
// migrations package imports this one, so the SQL is inlined here to avoid
// the import cycle.
func applyMigrations(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS symbol_ranges (
			symbol              TEXT PRIMARY KEY,
			have_from           DATE,
			have_to             DATE,
			first_available_day DATE,
			splits              JSONB NOT NULL DEFAULT '[]',
			last_split_check    TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS day_blobs (
			symbol          TEXT NOT NULL,
			day             DATE NOT NULL,
			first_timestamp BIGINT NOT NULL,
			last_timestamp  BIGINT NOT NULL,
			row_count       INTEGER NOT NULL,
			points          BYTEA NOT NULL,
			PRIMARY KEY (symbol, day)
		)`,
	}
	for _, stmt := range ddl {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err, "failed to apply test DDL")
	}
}

// ptr is a helper to create pointers to values.
func ptr[T any](v T) *T {
	return &v
}
