package metrics

import (
	drepo "CourtArb/internal/domain/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "courtarb"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cycleDuration prometheus.Histogram
	cycleEvents   prometheus.Gauge
	skippedTicks  prometheus.Counter
	enrichments   *prometheus.CounterVec
	signals       *prometheus.CounterVec
	storeSize     prometheus.Gauge
	cacheResults  *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

var _ drepo.Metrics = (*Recorder)(nil)

// New registers the recorder on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the recorder on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of aggregation cycles",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}),
		cycleEvents: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cycle_events",
			Help:      "Events held after the last cycle",
		}),
		skippedTicks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_ticks_total",
			Help:      "Ticks dropped because a cycle was still running",
		}),
		enrichments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_total",
			Help:      "Per-event enrichment outcomes by leg",
		}, []string{"leg", "outcome"}),
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Signals emitted",
		}, []string{"side", "direction"}),
		storeSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_events",
			Help:      "Events in the unified event store",
		}),
		cacheResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Reference cache lookups by result",
		}, []string{"cache", "result"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors encountered",
		}, []string{"type"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of operations in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (r *Recorder) RecordCycle(seconds float64, events int) {
	r.cycleDuration.Observe(seconds)
	r.cycleEvents.Set(float64(events))
}

func (r *Recorder) RecordSkippedTick() {
	r.skippedTicks.Inc()
}

// RecordEnrichment counts one leg outcome ("ok", "not_found", "timeout", ...).
func (r *Recorder) RecordEnrichment(leg, outcome string) {
	r.enrichments.WithLabelValues(leg, outcome).Inc()
}

func (r *Recorder) RecordSignal(side, direction string) {
	r.signals.WithLabelValues(side, direction).Inc()
}

func (r *Recorder) RecordStoreSize(n int) {
	r.storeSize.Set(float64(n))
}

func (r *Recorder) RecordCacheResult(cache, result string) {
	r.cacheResults.WithLabelValues(cache, result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
