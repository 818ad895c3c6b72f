// Package metrics exposes process-local Prometheus counters for the
// analysis pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sells-group/meal-analyzer/internal/model"
)

// PipelineMetrics implements analysis.Recorder on Prometheus collectors.
type PipelineMetrics struct {
	providerAttempts *prometheus.CounterVec
	requests         *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	itemsDropped     prometheus.Counter
	persistErrors    prometheus.Counter
}

// NewPipelineMetrics creates the collectors and registers them on registry.
func NewPipelineMetrics(registry prometheus.Registerer) (*PipelineMetrics, error) {
	m := &PipelineMetrics{
		providerAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meal_provider_attempts_total",
				Help: "Provider calls by provider, modality and outcome",
			},
			[]string{"provider", "modality", "outcome"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meal_analysis_requests_total",
				Help: "Analysis requests by modality and result kind",
			},
			[]string{"modality", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "meal_analysis_duration_seconds",
				Help: "End-to-end analysis latency",
				// 250ms to ~64s
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 9),
			},
			[]string{"modality"},
		),
		itemsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meal_food_items_dropped_total",
			Help: "Food items rejected during normalization",
		}),
		persistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meal_persistence_errors_total",
			Help: "Failed attempts to persist an analyzed meal",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements prometheus.Collector.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.providerAttempts.Describe(ch)
	m.requests.Describe(ch)
	m.duration.Describe(ch)
	m.itemsDropped.Describe(ch)
	m.persistErrors.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.providerAttempts.Collect(ch)
	m.requests.Collect(ch)
	m.duration.Collect(ch)
	m.itemsDropped.Collect(ch)
	m.persistErrors.Collect(ch)
}

// ProviderAttempt counts one backend call. Audio requests are labelled
// audio even though the backend receives the transcript.
func (m *PipelineMetrics) ProviderAttempt(provider model.ProviderTag, modality model.Modality, outcome model.AttemptOutcome) {
	m.providerAttempts.WithLabelValues(string(provider), string(modality), string(outcome)).Inc()
}

// FoodItemsDropped adds n rejected food items.
func (m *PipelineMetrics) FoodItemsDropped(n int) {
	m.itemsDropped.Add(float64(n))
}

// PersistenceError counts a meal that could not be saved.
func (m *PipelineMetrics) PersistenceError() {
	m.persistErrors.Inc()
}

// Request records a finished request. Validation failures carry no
// duration and are counted only.
func (m *PipelineMetrics) Request(modality model.Modality, result string, elapsed time.Duration) {
	m.requests.WithLabelValues(string(modality), result).Inc()
	if elapsed > 0 {
		m.duration.WithLabelValues(string(modality)).Observe(elapsed.Seconds())
	}
}
