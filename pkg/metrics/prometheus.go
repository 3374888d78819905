package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	predictions      *prometheus.CounterVec
	providerFailures *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	modelWeight      *prometheus.GaugeVec
	latency          *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		predictions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appraiser_predictions_total",
				Help: "Total number of ensemble predictions served",
			},
			[]string{"collection"},
		),
		providerFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appraiser_provider_failures_total",
				Help: "Model provider calls that failed or timed out",
			},
			[]string{"kind"},
		),
		fallbacks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appraiser_fallback_activations_total",
				Help: "Fallback cascade activations by strategy",
			},
			[]string{"strategy"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appraiser_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		modelWeight: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "appraiser_model_weight",
				Help: "Latest ensemble weight per collection and model kind",
			},
			[]string{"collection", "kind"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "appraiser_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordPrediction records a served ensemble prediction.
func (r *Recorder) RecordPrediction(collectionID string) {
	r.predictions.WithLabelValues(collectionID).Inc()
}

// RecordProviderFailure records a failed or timed-out provider call.
func (r *Recorder) RecordProviderFailure(kind string) {
	r.providerFailures.WithLabelValues(kind).Inc()
}

// RecordFallback records a fallback cascade activation.
func (r *Recorder) RecordFallback(strategy string) {
	r.fallbacks.WithLabelValues(strategy).Inc()
}

// RecordModelWeight records the latest weight for a model kind.
func (r *Recorder) RecordModelWeight(collectionID, kind string, weight float64) {
	r.modelWeight.WithLabelValues(collectionID, kind).Set(weight)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
