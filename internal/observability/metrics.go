// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Cache metrics
	DaysFetched      prometheus.Counter
	DaysSkipped      prometheus.Counter
	BlobsFlushed     prometheus.Counter
	SplitRefreshes   *prometheus.CounterVec
	FetchLatency     prometheus.Histogram
	FirstDaySearches prometheus.Counter

	// Simulation metrics
	RunsTotal        *prometheus.CounterVec
	BarsProcessed    prometheus.Counter
	FillsTotal       *prometheus.CounterVec
	FillsBlockedPdt  prometheus.Counter
	RunDuration      prometheus.Histogram
	PendingBuyOrders prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Quote feed metrics
	QuotesReceived   prometheus.Counter
	FeedReconnects   prometheus.Counter
	QuoteFeedLatency prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "grid_trading_lab"
	}

	return &Metrics{
		// Cache metrics
		DaysFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "days_fetched_total",
			Help:      "Total number of day-blobs fetched from the provider",
		}),
		DaysSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "days_skipped_total",
			Help:      "Total number of days skipped due to provider errors",
		}),
		BlobsFlushed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "blobs_flushed_total",
			Help:      "Total number of day-blobs flushed to the store",
		}),
		SplitRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "split_refreshes_total",
			Help:      "Total number of split reconciliation checks by outcome",
		}, []string{"outcome"}),
		FetchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "fetch_latency_seconds",
			Help:      "Day-bar fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		FirstDaySearches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "first_day_searches_total",
			Help:      "Total number of first-available-day discoveries",
		}),

		// Simulation metrics
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Total number of simulation runs by status",
		}, []string{"status"}),
		BarsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "bars_processed_total",
			Help:      "Total number of bars replayed through the order engine",
		}),
		FillsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "fills_total",
			Help:      "Total number of order fills by side",
		}, []string{"side"}),
		FillsBlockedPdt: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "fills_blocked_pdt_total",
			Help:      "Total number of sells blocked by the PDT gate",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "run_duration_seconds",
			Help:      "Simulation run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		PendingBuyOrders: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "pending_buy_orders",
			Help:      "Current size of the buy working set",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Quote feed metrics
		QuotesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quotes",
			Name:      "received_total",
			Help:      "Total number of quotes received from the feed",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quotes",
			Name:      "reconnects_total",
			Help:      "Total number of quote feed reconnects",
		}),
		QuoteFeedLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quotes",
			Name:      "message_latency_seconds",
			Help:      "Quote message processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordDayFetched increments the fetched-days counter.
func RecordDayFetched(seconds float64) {
	DefaultMetrics.DaysFetched.Inc()
	DefaultMetrics.FetchLatency.Observe(seconds)
}

// RecordDaySkipped increments the skipped-days counter.
func RecordDaySkipped() {
	DefaultMetrics.DaysSkipped.Inc()
}

// RecordSplitRefresh records a split reconciliation check outcome.
func RecordSplitRefresh(outcome string) {
	DefaultMetrics.SplitRefreshes.WithLabelValues(outcome).Inc()
}

// RecordFill records an executed fill.
func RecordFill(side string) {
	DefaultMetrics.FillsTotal.WithLabelValues(side).Inc()
}

// RecordRun records a finished simulation run.
func RecordRun(status string, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.Observe(durationSeconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
