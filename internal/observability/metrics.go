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
	// Event metrics
	EventsDecoded   *prometheus.CounterVec
	EventsProcessed *prometheus.CounterVec
	OrphanTrades    prometheus.Counter
	DuplicateTrades prometheus.Counter

	// Broadcast metrics
	PublishErrors *prometheus.CounterVec

	// Database metrics
	DBErrors *prometheus.CounterVec

	// Flusher metrics
	FlushDuration prometheus.Histogram
	FlushErrors   prometheus.Counter

	// Live source metrics
	WSReconnects  prometheus.Counter
	TokensInState prometheus.Gauge
	HighestSlot   prometheus.Gauge

	// Backfill metrics
	BackfillTransactions *prometheus.CounterVec

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec

	// Health metrics
	LastEventTimestamp prometheus.Gauge

	// Oracle metrics
	SolPriceUSD      prometheus.Gauge
	PriceFetchErrors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pumpfun_indexer"
	}

	return &Metrics{
		// Event metrics
		EventsDecoded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "decoded_total",
			Help:      "Total number of program events decoded by kind",
		}, []string{"kind"}),
		EventsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "processed_total",
			Help:      "Total number of program events applied by kind",
		}, []string{"kind"}),
		OrphanTrades: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "orphan_trades_total",
			Help:      "Total number of trades dropped for unknown mints",
		}),
		DuplicateTrades: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "duplicate_trades_total",
			Help:      "Total number of replayed trades suppressed by signature",
		}),

		// Broadcast metrics
		PublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "publish_errors_total",
			Help:      "Total number of failed channel publishes",
		}, []string{"channel"}),

		// Database metrics
		DBErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "errors_total",
			Help:      "Total number of database errors by operation",
		}, []string{"operation"}),

		// Flusher metrics
		FlushDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "flush",
			Name:      "duration_seconds",
			Help:      "Derived-field flush cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		FlushErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flush",
			Name:      "errors_total",
			Help:      "Total number of failed flush cycles",
		}),

		// Live source metrics
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnections",
		}),
		TokensInState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "tokens_in_state",
			Help:      "Current number of tokens held in the state store",
		}),
		HighestSlot: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot number seen",
		}),

		// Backfill metrics
		BackfillTransactions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "transactions_total",
			Help:      "Total number of backfilled transactions by outcome",
		}, []string{"outcome"}),

		// Latency metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Health metrics
		LastEventTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_event_timestamp",
			Help:      "Unix timestamp of the last applied event",
		}),

		// Oracle metrics
		SolPriceUSD: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "sol_price_usd",
			Help:      "Last fetched SOL/USD reference price",
		}),
		PriceFetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed price fetches by source",
		}, []string{"source"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEventDecoded increments the decoded counter for an event kind.
func RecordEventDecoded(kind string) {
	DefaultMetrics.EventsDecoded.WithLabelValues(kind).Inc()
}

// RecordEventProcessed increments the processed counter for an event kind.
func RecordEventProcessed(kind string) {
	DefaultMetrics.EventsProcessed.WithLabelValues(kind).Inc()
}

// RecordOrphanTrade increments the orphan trade counter.
func RecordOrphanTrade() {
	DefaultMetrics.OrphanTrades.Inc()
}

// RecordDuplicateTrade increments the suppressed replay counter.
func RecordDuplicateTrade() {
	DefaultMetrics.DuplicateTrades.Inc()
}

// RecordPublishError increments the publish error counter for a channel.
func RecordPublishError(channel string) {
	DefaultMetrics.PublishErrors.WithLabelValues(channel).Inc()
}

// RecordDBError increments the database error counter for an operation.
func RecordDBError(operation string) {
	DefaultMetrics.DBErrors.WithLabelValues(operation).Inc()
}

// RecordFlush records a flush cycle duration and outcome.
func RecordFlush(seconds float64, err error) {
	DefaultMetrics.FlushDuration.Observe(seconds)
	if err != nil {
		DefaultMetrics.FlushErrors.Inc()
	}
}

// RecordWSReconnect increments the WebSocket reconnect counter.
func RecordWSReconnect() {
	DefaultMetrics.WSReconnects.Inc()
}

// UpdateTokensInState updates the state store size gauge.
func UpdateTokensInState(n int) {
	DefaultMetrics.TokensInState.Set(float64(n))
}

// UpdateHighestSlot updates the highest slot seen gauge.
func UpdateHighestSlot(slot int64) {
	DefaultMetrics.HighestSlot.Set(float64(slot))
}

// RecordBackfillTransaction increments the backfill counter by outcome.
func RecordBackfillTransaction(outcome string) {
	DefaultMetrics.BackfillTransactions.WithLabelValues(outcome).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordEventTimestamp updates the last applied event timestamp gauge.
func RecordEventTimestamp(unixSeconds int64) {
	DefaultMetrics.LastEventTimestamp.Set(float64(unixSeconds))
}

// UpdateSolPrice updates the SOL/USD reference price gauge.
func UpdateSolPrice(usd float64) {
	DefaultMetrics.SolPriceUSD.Set(usd)
}

// RecordPriceFetchError increments the fetch error counter for a source.
func RecordPriceFetchError(source string) {
	DefaultMetrics.PriceFetchErrors.WithLabelValues(source).Inc()
}
