// Package main runs a grid-trading backtest over cached market data.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"grid-trading-lab/internal/backtest"
	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/marketdata"
	"grid-trading-lab/internal/observability"
	"grid-trading-lab/internal/rangecache"
	"grid-trading-lab/internal/reporting"
	"grid-trading-lab/internal/storage"
	"grid-trading-lab/internal/storage/clickhouse"
	"grid-trading-lab/internal/storage/memory"
	"grid-trading-lab/internal/storage/migrations"
	pgstore "grid-trading-lab/internal/storage/postgres"
)

func main() {
	// Parse flags; .env supplies credentials without polluting the CLI.
	_ = godotenv.Load()

	symbol := flag.String("symbol", "", "Symbol to simulate")
	startStr := flag.String("start", "", "Start date (YYYY-MM-DD)")
	endStr := flag.String("end", "", "End date (YYYY-MM-DD)")
	capital := flag.Float64("capital", 10000, "Starting capital")
	capitalPct := flag.Float64("capital-pct", 20, "Percent of cash spent per buy")
	buyBelowPct := flag.Float64("buy-below-pct", 5, "Replacement buy offset below fill price")
	sellAbovePct := flag.Float64("sell-above-pct", 10, "Paired sell offset above fill price")
	buyAfterSellPct := flag.Float64("buy-after-sell-pct", 3, "Grid-follow buy offset above sell price")
	orderGapPct := flag.Float64("order-gap-pct", 2, "Gap filter merge distance")
	gapFilter := flag.Bool("gap-filter", true, "Enable the buy order gap filter")
	cashFloor := flag.Float64("cash-floor", 0, "Minimum cash after any buy")
	contribDays := flag.Int("contribution-days", 0, "Days between contributions (0 disables)")
	contribAmount := flag.Float64("contribution-amount", 0, "Contribution amount")

	dataURL := flag.String("data-url", os.Getenv("MARKET_DATA_URL"), "Market data API base URL")
	dataKey := flag.String("data-key", os.Getenv("MARKET_DATA_KEY"), "Market data API key")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse DSN for sample analytics (empty to disable)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	outputDir := flag.String("output-dir", "reports", "Output directory for generated reports")

	flag.Parse()

	logger := log.New(os.Stdout, "[backtest] ", log.LstdFlags)

	cfg, err := buildConfig(*symbol, *startStr, *endStr, *capital, *capitalPct, *buyBelowPct,
		*sellAbovePct, *buyAfterSellPct, *orderGapPct, *gapFilter, *cashFloor, *contribDays, *contribAmount)
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	if *dataURL == "" {
		logger.Fatal("Market data URL required (-data-url or MARKET_DATA_URL)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling run...", sig)
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

	var sampleStore storage.SampleStore
	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("ClickHouse: %v", err)
		}
		defer conn.Close()
		sampleStore = clickhouse.NewSampleStore(conn)
	}

	client := marketdata.NewHTTPClient(*dataURL, *dataKey)
	cache := rangecache.NewManager(rangecache.Options{
		BarStore:   barStore,
		RangeStore: rangeStore,
		Bars:       client,
		Splits:     client,
	})

	runner := backtest.NewRunner(backtest.Options{
		Cache:   cache,
		Bars:    barStore,
		Samples: sampleStore,
		Progress: func(e backtest.Event) {
			logger.Printf("%-20s %5.1f%%  %s", e.Stage, e.Progress, e.Message)
		},
	})

	result, err := runner.Run(ctx, cfg)
	if err != nil {
		logger.Fatalf("Run failed: %v", err)
	}
	if result.Cancelled {
		logger.Printf("Run %s cancelled after %d bars", result.RunID, result.BarsProcessed)
		return
	}

	logger.Printf("Run %s completed: equity %.2f, cash %.2f, %d bars in %dms",
		result.RunID, result.FinalEquity, result.FinalCash, result.BarsProcessed, result.ElapsedMs)

	report := reporting.NewGenerator().Generate(cfg, result)
	if err := writeReports(*outputDir, result.RunID, report); err != nil {
		logger.Fatalf("Writing reports: %v", err)
	}
	logger.Printf("Reports written to %s", *outputDir)
}

// buildConfig assembles and validates the session config from flags.
func buildConfig(symbol, startStr, endStr string, capital, capitalPct, buyBelowPct, sellAbovePct,
	buyAfterSellPct, orderGapPct float64, gapFilter bool, cashFloor float64, contribDays int,
	contribAmount float64) (*domain.SessionConfig, error) {

	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return nil, fmt.Errorf("parse start date: %w", err)
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return nil, fmt.Errorf("parse end date: %w", err)
	}

	cfg := &domain.SessionConfig{
		Symbol:           symbol,
		StartDate:        start,
		EndDate:          end,
		StartingCapital:  capital,
		CapitalPct:       capitalPct,
		BuyBelowPct:      buyBelowPct,
		SellAbovePct:     sellAbovePct,
		BuyAfterSellPct:  buyAfterSellPct,
		OrderGapPct:      orderGapPct,
		GapFilterEnabled: gapFilter,
		CashFloor:        cashFloor,
	}
	if contribDays > 0 {
		cfg.Contribution = &domain.ContributionSchedule{FrequencyDays: contribDays, Amount: contribAmount}
	}
	return cfg, cfg.Validate()
}

// openStores selects memory or PostgreSQL-backed stores.
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

func writeReports(dir, runID string, report *reporting.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	md := filepath.Join(dir, runID+".md")
	if err := os.WriteFile(md, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		return err
	}
	csv := filepath.Join(dir, runID+"-executions.csv")
	return os.WriteFile(csv, []byte(reporting.RenderExecutionsCSV(report)), 0o644)
}
