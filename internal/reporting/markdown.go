package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Backtest Report: %s\n\n", r.Symbol))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s | Window: %s to %s\n\n",
		r.RunID, r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02")))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Starting Capital | %.2f |\n", r.StartingCapital))
	sb.WriteString(fmt.Sprintf("| Contributed | %.2f |\n", r.Contributed))
	sb.WriteString(fmt.Sprintf("| Final Cash | %.2f |\n", r.FinalCash))
	sb.WriteString(fmt.Sprintf("| Final Equity | %.2f |\n", r.FinalEquity))
	sb.WriteString(fmt.Sprintf("| Bars Processed | %d |\n", r.BarsProcessed))
	sb.WriteString(fmt.Sprintf("| Elapsed (ms) | %d |\n", r.ElapsedMs))
	sb.WriteString("\n")

	// Performance
	sb.WriteString("## Performance\n\n")
	if r.Metrics != nil {
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Total Return %% | %.2f |\n", r.Metrics.TotalReturnPct))
		sb.WriteString(fmt.Sprintf("| Max Drawdown %% | %.2f |\n", r.Metrics.MaxDrawdownPct))
		sb.WriteString(fmt.Sprintf("| Max Drawdown $ | %.2f |\n", r.Metrics.MaxDrawdownDollars))
		sb.WriteString(fmt.Sprintf("| Best Month %% | %.2f |\n", r.Metrics.BestMonthPct))
		sb.WriteString(fmt.Sprintf("| Worst Month %% | %.2f |\n", r.Metrics.WorstMonthPct))
		sb.WriteString(fmt.Sprintf("| Trades | %d |\n", r.Metrics.TradeCount))
		sb.WriteString(fmt.Sprintf("| Buy-and-Hold Equity | %.2f |\n", r.Metrics.BuyAndHoldEquity))
	} else {
		sb.WriteString("No metrics available.\n")
	}
	sb.WriteString("\n")

	// Monthly Returns
	sb.WriteString("## Monthly Returns\n\n")
	if r.Metrics != nil && len(r.Metrics.MonthlyReturns) > 0 {
		sb.WriteString("| Month | Equity | Change % |\n")
		sb.WriteString("|-------|--------|----------|\n")
		for _, m := range r.Metrics.MonthlyReturns {
			sb.WriteString(fmt.Sprintf("| %s | %.2f | %.2f |\n", m.Month, m.Equity, m.ChangePct))
		}
	} else {
		sb.WriteString("No monthly data available.\n")
	}
	sb.WriteString("\n")

	// Drawdown Periods
	sb.WriteString("## Drawdown Periods\n\n")
	if r.Metrics != nil && len(r.Metrics.Drawdowns) > 0 {
		sb.WriteString("| Start | End | Peak | Trough |\n")
		sb.WriteString("|-------|-----|------|--------|\n")
		for _, d := range r.Metrics.Drawdowns {
			end := "open"
			if d.End != 0 {
				end = time.UnixMilli(d.End).UTC().Format("2006-01-02 15:04")
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %.2f | %.2f |\n",
				time.UnixMilli(d.Start).UTC().Format("2006-01-02 15:04"), end, d.PeakEquity, d.TroughEquity))
		}
	} else {
		sb.WriteString("No drawdowns recorded.\n")
	}
	sb.WriteString("\n")

	// Executions
	sb.WriteString("## Executions\n\n")
	if len(r.Markers) > 0 {
		sb.WriteString("| Time | Side | Price | Shares |\n")
		sb.WriteString("|------|------|-------|--------|\n")
		for _, m := range r.Markers {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.4f | %.4f |\n",
				time.UnixMilli(m.Timestamp).UTC().Format("2006-01-02 15:04:05"), m.Type, m.Price, m.Shares))
		}
	} else {
		sb.WriteString("No executions recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
