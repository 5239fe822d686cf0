// Package main runs the grid strategy against a live WebSocket quote feed
// in paper-trading mode: fills are simulated locally, no broker orders are
// placed.
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

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/live"
	"grid-trading-lab/internal/marketdata"
	"grid-trading-lab/internal/observability"
	"grid-trading-lab/internal/orders"
	"grid-trading-lab/internal/quotes"
	"grid-trading-lab/internal/rangecache"
	"grid-trading-lab/internal/storage"
	"grid-trading-lab/internal/storage/memory"
	"grid-trading-lab/internal/storage/migrations"
	pgstore "grid-trading-lab/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	symbol := flag.String("symbol", "", "Symbol to trade")
	capital := flag.Float64("capital", 10000, "Starting paper capital")
	capitalPct := flag.Float64("capital-pct", 20, "Percent of cash spent per buy")
	buyBelowPct := flag.Float64("buy-below-pct", 5, "Replacement buy offset below fill price")
	sellAbovePct := flag.Float64("sell-above-pct", 10, "Paired sell offset above fill price")
	buyAfterSellPct := flag.Float64("buy-after-sell-pct", 3, "Grid-follow buy offset above sell price")
	orderGapPct := flag.Float64("order-gap-pct", 2, "Gap filter merge distance")
	gapFilter := flag.Bool("gap-filter", true, "Enable the buy order gap filter")
	cashFloor := flag.Float64("cash-floor", 0, "Minimum cash after any buy")

	feedURL := flag.String("feed-url", os.Getenv("QUOTE_FEED_URL"), "WebSocket quote feed URL")
	dataURL := flag.String("data-url", os.Getenv("MARKET_DATA_URL"), "Market data API base URL (for split reconciliation; empty disables)")
	dataKey := flag.String("data-key", os.Getenv("MARKET_DATA_KEY"), "Market data API key")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", ":9102", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logger := log.New(os.Stdout, "[live] ", log.LstdFlags)

	if *symbol == "" {
		logger.Fatal("Symbol required (-symbol)")
	}
	if *feedURL == "" {
		logger.Fatal("Quote feed URL required (-feed-url or QUOTE_FEED_URL)")
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	cfg := &domain.SessionConfig{
		Symbol:           *symbol,
		StartDate:        today,
		EndDate:          today.AddDate(1, 0, 0),
		StartingCapital:  *capital,
		CapitalPct:       *capitalPct,
		BuyBelowPct:      *buyBelowPct,
		SellAbovePct:     *sellAbovePct,
		BuyAfterSellPct:  *buyAfterSellPct,
		OrderGapPct:      *orderGapPct,
		GapFilterEnabled: *gapFilter,
		CashFloor:        *cashFloor,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("OK"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Paper trading: simulated fills, no broker equity feed, so every
	// compliance-gated sell is blocked. Wire a broker feed here when one
	// exists.
	session, err := live.NewSession(cfg, orders.NewSimulatedExecutor(), nil)
	if err != nil {
		logger.Fatalf("Session: %v", err)
	}

	// Daily split reconciliation: rescales trades and pending triggers when
	// a split lands mid-session.
	if *dataURL != "" {
		barStore, rangeStore, cleanup, err := openStores(ctx, *useMemory, *postgresDSN)
		if err != nil {
			logger.Fatalf("Storage: %v", err)
		}
		defer cleanup()

		mdClient := marketdata.NewHTTPClient(*dataURL, *dataKey)
		session.SetSplitChecker(rangecache.NewManager(rangecache.Options{
			BarStore:   barStore,
			RangeStore: rangeStore,
			Bars:       mdClient,
			Splits:     mdClient,
		}))
	} else {
		logger.Printf("No market data URL configured, split reconciliation disabled")
	}

	client, err := quotes.NewWSClient(ctx, *feedURL, nil)
	if err != nil {
		logger.Fatalf("Quote feed: %v", err)
	}
	defer client.Close()

	if err := client.Subscribe(*symbol); err != nil {
		logger.Fatalf("Subscribe: %v", err)
	}
	logger.Printf("Streaming %s from %s", *symbol, *feedURL)

	if err := session.Run(ctx, client.Quotes()); err != nil && err != context.Canceled {
		logger.Fatalf("Session: %v", err)
	}

	equity, _ := session.Engine().Equity(time.Now().UnixMilli())
	logger.Printf("Session ended: cash %.2f, equity %.2f, %d fills",
		session.Capital().Cash, equity, len(session.Engine().History()))
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
