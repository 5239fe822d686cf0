package domain

// SamplePoint is one chart observation at a sampled timestamp.
type SamplePoint struct {
	Timestamp int64 // Unix ms
	Price     float64
	Equity    float64
	Cash      float64
}

// ExecutionMarker pins an order fill to an exact chart timestamp.
type ExecutionMarker struct {
	Timestamp int64 // Unix ms
	Type      TradeType
	Price     float64
	Shares    float64
	TradeID   string
}

// ChartSeries is the sampled price/equity/cash series plus fill markers.
type ChartSeries struct {
	IntervalMs int64
	Samples    []SamplePoint
	Markers    []ExecutionMarker
}

// DrawdownPeriod is one peak-to-recovery stretch of below-peak equity.
type DrawdownPeriod struct {
	Start        int64 // Unix ms of the first below-peak tick
	End          int64 // Unix ms of the tick that set a new peak, 0 while open
	PeakEquity   float64
	TroughEquity float64
}

// MonthlyReturn is one month's closing equity and its delta from the
// previous month.
type MonthlyReturn struct {
	Month     string // "2025-01"
	Equity    float64
	ChangePct float64
}

// MetricsReport is the analytics block of a finished run.
type MetricsReport struct {
	MaxDrawdownPct     float64
	MaxDrawdownDollars float64
	BestMonthPct       float64
	WorstMonthPct      float64
	TotalReturnPct     float64
	TradeCount         int
	BuyAndHoldEquity   float64
	MonthlyReturns     []MonthlyReturn
	Drawdowns          []DrawdownPeriod
}

// BacktestResult is the final output of a run.
type BacktestResult struct {
	RunID  string
	Symbol string

	// Cancelled distinguishes a cooperative abort from a completed run.
	// A cancelled result carries no final metrics.
	Cancelled bool

	FinalCash     float64
	FinalEquity   float64
	Contributed   float64
	BarsProcessed int
	ElapsedMs     int64

	Chart   *ChartSeries   // nil when charting disabled
	Metrics *MetricsReport // nil when cancelled or metrics disabled
}
