// Package metrics exposes training and evaluation counters for the textfile collector.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/learning"
)

// Metrics holds the collectors of one nbayes run on a private registry
type Metrics struct {
	registry *prometheus.Registry

	ObservationsLearned  prometheus.Counter
	ObservationsSkipped  prometheus.Counter
	ItemsClassified      prometheus.Counter
	Errors               *prometheus.CounterVec
	ErrorRate            *prometheus.GaugeVec
	PhaseDurationSeconds *prometheus.GaugeVec
}

// New registers the collectors under namespace
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ObservationsLearned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_learned_total",
			Help:      "Observations added to the frequency table.",
		}),
		ObservationsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_skipped_total",
			Help:      "Observations dropped for holding values outside the domain.",
		}),
		ItemsClassified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_classified_total",
			Help:      "Items labeled by the classifier.",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Failed learn or classify calls by kind.",
		}, []string{"kind"}),
		ErrorRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "classification_error_ratio",
			Help:      "Fraction of mislabeled items of the last evaluation.",
		}, []string{"set"}),
		PhaseDurationSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Wall time of the last run of each phase.",
		}, []string{"phase"}),
	}

	m.registry.MustRegister(
		m.ObservationsLearned,
		m.ObservationsSkipped,
		m.ItemsClassified,
		m.Errors,
		m.ErrorRate,
		m.PhaseDurationSeconds,
	)
	return m
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordError counts err under its error kind
func (m *Metrics) RecordError(err error) {
	if err == nil {
		return
	}
	m.Errors.WithLabelValues(ErrorKind(err)).Inc()
}

// ErrorKind maps an error to a metric label
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, learning.ErrMalformedInput):
		return "malformed_input"
	case errors.Is(err, learning.ErrOutOfDomain):
		return "out_of_domain"
	case errors.Is(err, learning.ErrEmptyModel):
		return "empty_model"
	case errors.Is(err, learning.ErrUnknownAttribute):
		return "unknown_attribute"
	default:
		return "other"
	}
}

// WriteTextfile writes all metrics in the node-exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
