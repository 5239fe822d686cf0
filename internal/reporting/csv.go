package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderExecutionsCSV renders the run's fills as a CSV string.
func RenderExecutionsCSV(r *Report) string {
	var sb strings.Builder

	sb.WriteString("timestamp,side,price,shares,trade_id\n")
	for _, m := range r.Markers {
		sb.WriteString(fmt.Sprintf("%s,%s,%.6f,%.6f,%s\n",
			time.UnixMilli(m.Timestamp).UTC().Format(time.RFC3339),
			m.Type,
			m.Price,
			m.Shares,
			m.TradeID,
		))
	}

	return sb.String()
}

// RenderMonthlyCSV renders monthly returns as a CSV string.
func RenderMonthlyCSV(r *Report) string {
	var sb strings.Builder

	sb.WriteString("month,equity,change_pct\n")
	if r.Metrics != nil {
		for _, m := range r.Metrics.MonthlyReturns {
			sb.WriteString(fmt.Sprintf("%s,%.6f,%.6f\n", m.Month, m.Equity, m.ChangePct))
		}
	}

	return sb.String()
}
