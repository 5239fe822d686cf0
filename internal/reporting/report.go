// Package reporting renders finished runs as Markdown and CSV.
package reporting

import (
	"time"

	"grid-trading-lab/internal/domain"
)

// Report is the renderable view of a finished run.
type Report struct {
	GeneratedAt time.Time

	RunID     string
	Symbol    string
	StartDate time.Time
	EndDate   time.Time

	StartingCapital float64
	Contributed     float64
	FinalCash       float64
	FinalEquity     float64
	BarsProcessed   int
	ElapsedMs       int64

	Metrics *domain.MetricsReport
	Markers []domain.ExecutionMarker
}

// Generator builds reports from run results.
type Generator struct {
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator.
func NewGenerator() *Generator {
	return &Generator{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate assembles the report view for a completed run.
func (g *Generator) Generate(cfg *domain.SessionConfig, result *domain.BacktestResult) *Report {
	report := &Report{
		GeneratedAt:     g.now(),
		RunID:           result.RunID,
		Symbol:          result.Symbol,
		StartDate:       cfg.StartDate,
		EndDate:         cfg.EndDate,
		StartingCapital: cfg.StartingCapital,
		Contributed:     result.Contributed,
		FinalCash:       result.FinalCash,
		FinalEquity:     result.FinalEquity,
		BarsProcessed:   result.BarsProcessed,
		ElapsedMs:       result.ElapsedMs,
		Metrics:         result.Metrics,
	}
	if result.Chart != nil {
		report.Markers = result.Chart.Markers
	}
	return report
}
