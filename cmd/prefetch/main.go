// Package main warms the bar cache for a symbol ahead of backtest runs:
// it discovers the first available day, downloads any missing coverage for
// the requested window, and refreshes split data.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"grid-trading-lab/internal/marketdata"
	"grid-trading-lab/internal/observability"
	"grid-trading-lab/internal/rangecache"
	"grid-trading-lab/internal/storage"
	"grid-trading-lab/internal/storage/memory"
	"grid-trading-lab/internal/storage/migrations"
	pgstore "grid-trading-lab/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	symbol := flag.String("symbol", "", "Symbol to prefetch")
	startStr := flag.String("start", "", "Window start (YYYY-MM-DD)")
	endStr := flag.String("end", "", "Window end (YYYY-MM-DD)")
	refreshSplits := flag.Bool("refresh-splits", true, "Check for new stock splits")

	dataURL := flag.String("data-url", os.Getenv("MARKET_DATA_URL"), "Market data API base URL")
	dataKey := flag.String("data-key", os.Getenv("MARKET_DATA_KEY"), "Market data API key")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	requestDelay := flag.Duration("request-delay", 0, "Delay between upstream fetches (0 = default)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logger := log.New(os.Stdout, "[prefetch] ", log.LstdFlags)

	if *symbol == "" {
		logger.Fatal("Symbol required (-symbol)")
	}
	if *dataURL == "" {
		logger.Fatal("Market data URL required (-data-url or MARKET_DATA_URL)")
	}
	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		logger.Fatalf("Parse start date: %v", err)
	}
	end, err := time.Parse("2006-01-02", *endStr)
	if err != nil {
		logger.Fatalf("Parse end date: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, stopping...", sig)
		cancel()
	}()

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	barStore, rangeStore, cleanup, err := openStores(ctx, *useMemory, *postgresDSN)
	if err != nil {
		logger.Fatalf("Storage: %v", err)
	}
	defer cleanup()

	client := marketdata.NewHTTPClient(*dataURL, *dataKey)
	cache := rangecache.NewManager(rangecache.Options{
		BarStore:     barStore,
		RangeStore:   rangeStore,
		Bars:         client,
		Splits:       client,
		RequestDelay: *requestDelay,
	})

	if *refreshSplits {
		// No local trades to rescale when warming the cache.
		if _, err := cache.CheckAndRefreshSplits(ctx, *symbol, func(time.Time, float64) {}); err != nil {
			logger.Fatalf("Split refresh: %v", err)
		}
	}

	r, err := cache.EnsureFirstAvailableDay(ctx, *symbol)
	if err != nil {
		logger.Fatalf("First-day discovery: %v", err)
	}
	if r.FirstAvailableDay == nil {
		logger.Fatalf("No data available for %s", *symbol)
	}
	logger.Printf("First available day for %s: %s", *symbol, r.FirstAvailableDay.Format("2006-01-02"))

	if start.Before(*r.FirstAvailableDay) {
		logger.Printf("Clamping window start to first available day")
		start = *r.FirstAvailableDay
	}

	left, right := rangecache.ComputeMissingRanges(start, end, r.HaveFrom, r.HaveTo)
	if left == nil && right == nil {
		logger.Printf("Window %s..%s already cached", *startStr, *endStr)
		return
	}

	r, err = cache.FillMissingRanges(ctx, *symbol, left, right, func(fetched, total int) {
		logger.Printf("Fetched %d/%d days", fetched, total)
	})
	if err != nil {
		logger.Fatalf("Fill: %v", err)
	}

	logger.Printf("Coverage for %s: %s .. %s", *symbol,
		r.HaveFrom.Format("2006-01-02"), r.HaveTo.Format("2006-01-02"))
}

func openStores(ctx context.Context, useMemory bool, dsn string) (storage.BarStore, storage.RangeStore, func(), error) {
	if useMemory || dsn == "" {
		return memory.NewBarStore(), memory.NewRangeStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	return pgstore.NewBarStore(pool), pgstore.NewRangeStore(pool), pool.Close, nil
}
