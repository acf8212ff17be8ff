package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cacheHits     *prometheus.CounterVec
	cacheMisses   *prometheus.CounterVec
	providerCalls *prometheus.CounterVec
	rowsUpserted  *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		cacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finvault_cache_hits_total",
				Help: "Total number of memory cache hits",
			},
			[]string{"dataset"},
		),
		cacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finvault_cache_misses_total",
				Help: "Total number of memory cache misses",
			},
			[]string{"dataset"},
		),
		providerCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finvault_provider_calls_total",
				Help: "Total number of calls made to the data provider",
			},
			[]string{"dataset", "ticker"},
		),
		rowsUpserted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finvault_rows_upserted_total",
				Help: "Total number of rows written to the store",
			},
			[]string{"dataset"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finvault_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finvault_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordCacheHit records a memory cache hit for a dataset.
func (r *Recorder) RecordCacheHit(dataset string) {
	r.cacheHits.WithLabelValues(dataset).Inc()
}

// RecordCacheMiss records a memory cache miss for a dataset.
func (r *Recorder) RecordCacheMiss(dataset string) {
	r.cacheMisses.WithLabelValues(dataset).Inc()
}

// RecordProviderCall records a call to the upstream data provider.
func (r *Recorder) RecordProviderCall(dataset, ticker string) {
	r.providerCalls.WithLabelValues(dataset, ticker).Inc()
}

// RecordRowsUpserted records rows written to durable storage.
func (r *Recorder) RecordRowsUpserted(dataset string, n int) {
	r.rowsUpserted.WithLabelValues(dataset).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
