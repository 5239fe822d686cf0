package reporting

import (
	"strings"
	"testing"
	"time"

	"grid-trading-lab/internal/domain"
)

func testResult() (*domain.SessionConfig, *domain.BacktestResult) {
	cfg := &domain.SessionConfig{
		Symbol:          "GRID",
		StartDate:       time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC),
		StartingCapital: 10000,
	}
	result := &domain.BacktestResult{
		RunID:         "run-1",
		Symbol:        "GRID",
		FinalCash:     4200,
		FinalEquity:   11500,
		Contributed:   1000,
		BarsProcessed: 23400,
		ElapsedMs:     812,
		Chart: &domain.ChartSeries{
			Markers: []domain.ExecutionMarker{
				{Timestamp: time.Date(2025, time.January, 6, 14, 0, 0, 0, time.UTC).UnixMilli(), Type: domain.TradeTypeBuy, Price: 100, Shares: 20, TradeID: "t1"},
				{Timestamp: time.Date(2025, time.January, 8, 15, 0, 0, 0, time.UTC).UnixMilli(), Type: domain.TradeTypeSell, Price: 110, Shares: 20, TradeID: "t2"},
			},
		},
		Metrics: &domain.MetricsReport{
			MaxDrawdownPct:     4.5,
			MaxDrawdownDollars: 480,
			BestMonthPct:       6.1,
			WorstMonthPct:      -2.2,
			TotalReturnPct:     4.55,
			TradeCount:         42,
			BuyAndHoldEquity:   10900,
			MonthlyReturns: []domain.MonthlyReturn{
				{Month: "2025-01", Equity: 10300},
				{Month: "2025-02", Equity: 10930, ChangePct: 6.1},
				{Month: "2025-03", Equity: 10690, ChangePct: -2.2},
			},
			Drawdowns: []domain.DrawdownPeriod{
				{Start: time.Date(2025, time.January, 15, 14, 0, 0, 0, time.UTC).UnixMilli(), PeakEquity: 10600, TroughEquity: 10120},
			},
		},
	}
	return cfg, result
}

func TestGenerate_DeterministicClock(t *testing.T) {
	cfg, result := testResult()
	fixed := time.Date(2025, time.April, 1, 12, 0, 0, 0, time.UTC)
	gen := NewGenerator().WithClock(func() time.Time { return fixed })

	report := gen.Generate(cfg, result)
	if !report.GeneratedAt.Equal(fixed) {
		t.Errorf("GeneratedAt %v, want the injected clock time", report.GeneratedAt)
	}
	if report.RunID != "run-1" || report.Symbol != "GRID" {
		t.Errorf("Report identity incomplete: %q/%q", report.RunID, report.Symbol)
	}
	if len(report.Markers) != 2 {
		t.Errorf("Expected 2 markers, got %d", len(report.Markers))
	}
}

func TestRenderMarkdown_ContainsSections(t *testing.T) {
	cfg, result := testResult()
	report := NewGenerator().Generate(cfg, result)

	md := RenderMarkdown(report)
	for _, want := range []string{
		"# Backtest Report: GRID",
		"## Summary",
		"## Performance",
		"| Total Return % | 4.55 |",
		"## Monthly Returns",
		"| 2025-02 | 10930.00 | 6.10 |",
		"## Drawdown Periods",
		"| open |",
		"## Executions",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown missing %q", want)
		}
	}
}

func TestRenderMarkdown_EmptyMetrics(t *testing.T) {
	cfg, result := testResult()
	result.Metrics = nil
	result.Chart = nil

	md := RenderMarkdown(NewGenerator().Generate(cfg, result))
	if !strings.Contains(md, "No metrics available.") {
		t.Error("Markdown must state when metrics are missing")
	}
	if !strings.Contains(md, "No executions recorded.") {
		t.Error("Markdown must state when executions are missing")
	}
}

func TestRenderExecutionsCSV(t *testing.T) {
	cfg, result := testResult()
	report := NewGenerator().Generate(cfg, result)

	csv := RenderExecutionsCSV(report)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "timestamp,side,price,shares,trade_id" {
		t.Errorf("Unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "buy") || !strings.Contains(lines[2], "sell") {
		t.Errorf("Rows out of order or missing sides: %v", lines[1:])
	}
}

func TestRenderMonthlyCSV(t *testing.T) {
	cfg, result := testResult()
	report := NewGenerator().Generate(cfg, result)

	csv := RenderMonthlyCSV(report)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected header + 3 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[1], "2025-01,") {
		t.Errorf("First row %q, want January", lines[1])
	}
}
