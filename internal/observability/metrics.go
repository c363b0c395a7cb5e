package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "electricmonitor_"

// Result labels for operation counters.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	pulsesStoredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: metricPrefix + "pulses_stored_total",
			Help: "Total pulse events recorded in the event store.",
		},
	)
	pulseStoreRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: metricPrefix + "pulse_store_retries_total",
			Help: "Total write retries caused by transient database contention.",
		},
	)
	pulsesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "pulses_dropped_total",
			Help: "Total pulse events dropped, by reason.",
		},
		[]string{"reason"},
	)

	aggregationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "aggregation_runs_total",
			Help: "Total hourly aggregation runs by result.",
		},
		[]string{"result"},
	)
	aggregationDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    metricPrefix + "aggregation_duration_seconds",
			Help:    "Hourly aggregation run latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "http_requests_total",
			Help: "Total HTTP requests served.",
		},
		[]string{"route", "method", "status"},
	)
	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metricPrefix + "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// IncPulseStored increments the stored pulse counter.
func IncPulseStored() {
	pulsesStoredTotal.Inc()
}

// AddPulseStoreRetries adds to the retry counter after a contended write.
func AddPulseStoreRetries(count int) {
	if count <= 0 {
		return
	}
	pulseStoreRetriesTotal.Add(float64(count))
}

// IncPulseDropped increments the dropped pulse counter for a reason.
func IncPulseDropped(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	pulsesDroppedTotal.WithLabelValues(reason).Inc()
}

// ObserveAggregationRun records one aggregation run's result and duration.
func ObserveAggregationRun(result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	aggregationRunsTotal.WithLabelValues(result).Inc()
	aggregationDurationSeconds.Observe(duration.Seconds())
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(route, method string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(route, method).Observe(duration.Seconds())
}

// Handler returns the HTTP handler serving the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
