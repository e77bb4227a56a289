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
	// Dispatch metrics
	MessagesReceived   prometheus.Counter
	CandidatesSeen     *prometheus.CounterVec
	InvalidCandidates  prometheus.Counter
	DedupHits          prometheus.Counter
	DispatchLatency    prometheus.Histogram
	DispatchPanics     prometheus.Counter
	LastMessageSeconds prometheus.Gauge

	// Forwarding metrics
	ForwardAttempts *prometheus.CounterVec
	ForwardResults  *prometheus.CounterVec

	// Oracle metrics
	OracleLookups *prometheus.CounterVec
	OracleLatency prometheus.Histogram

	// Tracking metrics
	TrackingRunsActive prometheus.Gauge
	TrackingRunsTotal  *prometheus.CounterVec
	OffsetSamples      *prometheus.CounterVec
	StoreErrors        *prometheus.CounterVec
	SampleLogErrors    prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_trend_monitor"
	}

	return &Metrics{
		MessagesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "messages_received_total",
			Help:      "Total number of inbound chat messages",
		}),
		CandidatesSeen: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "candidates_total",
			Help:      "Total number of extracted candidates by pattern",
		}, []string{"pattern"}),
		InvalidCandidates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "invalid_candidates_total",
			Help:      "Total number of candidates rejected by validation",
		}),
		DedupHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "dedup_hits_total",
			Help:      "Total number of (identifier, destination) pairs skipped as already forwarded",
		}),
		DispatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "message_duration_seconds",
			Help:      "Time to handle one inbound message, including send delays",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		DispatchPanics: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "panics_total",
			Help:      "Total number of recovered panics in the dispatch loop",
		}),
		LastMessageSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_message_timestamp",
			Help:      "Unix timestamp of last inbound message",
		}),

		ForwardAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forward",
			Name:      "attempts_total",
			Help:      "Total number of send attempts by outcome",
		}, []string{"outcome"}),
		ForwardResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forward",
			Name:      "results_total",
			Help:      "Total number of forward operations by destination and result",
		}, []string{"destination", "result"}),

		OracleLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "lookups_total",
			Help:      "Total number of oracle lookups by result",
		}, []string{"result"}),
		OracleLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "lookup_duration_seconds",
			Help:      "Oracle lookup latency",
			Buckets:   prometheus.DefBuckets,
		}),

		TrackingRunsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "runs_active",
			Help:      "Number of sampling runs in flight",
		}),
		TrackingRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "runs_total",
			Help:      "Total number of finished sampling runs by final state",
		}, []string{"state"}),
		OffsetSamples: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "offset_samples_total",
			Help:      "Total number of offset measurements by offset and result",
		}, []string{"offset", "result"}),
		StoreErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Total number of tracking store errors by operation",
		}, []string{"operation"}),
		SampleLogErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "sample_log_errors_total",
			Help:      "Total number of failed price sample log writes",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordMessage increments the inbound message counter.
func RecordMessage(unixSeconds float64) {
	DefaultMetrics.MessagesReceived.Inc()
	DefaultMetrics.LastMessageSeconds.Set(unixSeconds)
}

// RecordCandidate records an extracted candidate and the pattern that matched it.
func RecordCandidate(pattern string) {
	DefaultMetrics.CandidatesSeen.WithLabelValues(pattern).Inc()
}

// RecordInvalidCandidate increments the rejected candidate counter.
func RecordInvalidCandidate() {
	DefaultMetrics.InvalidCandidates.Inc()
}

// RecordDedupHit increments the dedup hit counter.
func RecordDedupHit() {
	DefaultMetrics.DedupHits.Inc()
}

// RecordDispatch records message handling latency.
func RecordDispatch(seconds float64) {
	DefaultMetrics.DispatchLatency.Observe(seconds)
}

// RecordDispatchPanic increments the recovered panic counter.
func RecordDispatchPanic() {
	DefaultMetrics.DispatchPanics.Inc()
}

// RecordForwardAttempt records one send attempt.
func RecordForwardAttempt(ok bool) {
	DefaultMetrics.ForwardAttempts.WithLabelValues(outcome(ok)).Inc()
}

// RecordForwardResult records the final result of a forward operation.
func RecordForwardResult(destination string, delivered bool) {
	result := "delivered"
	if !delivered {
		result = "failed"
	}
	DefaultMetrics.ForwardResults.WithLabelValues(destination, result).Inc()
}

// RecordOracleLookup records an oracle lookup.
func RecordOracleLookup(result string, seconds float64) {
	DefaultMetrics.OracleLookups.WithLabelValues(result).Inc()
	DefaultMetrics.OracleLatency.Observe(seconds)
}

// RecordRunStarted increments the active run gauge.
func RecordRunStarted() {
	DefaultMetrics.TrackingRunsActive.Inc()
}

// RecordRunFinished decrements the active run gauge and counts the final state.
func RecordRunFinished(state string) {
	DefaultMetrics.TrackingRunsActive.Dec()
	DefaultMetrics.TrackingRunsTotal.WithLabelValues(state).Inc()
}

// RecordOffsetSample records an offset measurement.
func RecordOffsetSample(offset string, ok bool) {
	DefaultMetrics.OffsetSamples.WithLabelValues(offset, outcome(ok)).Inc()
}

// RecordStoreError records a tracking store failure.
func RecordStoreError(operation string) {
	DefaultMetrics.StoreErrors.WithLabelValues(operation).Inc()
}

// RecordSampleLogError records a failed sample log write.
func RecordSampleLogError() {
	DefaultMetrics.SampleLogErrors.Inc()
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
