// Package metrics holds the reconciliation counters. Metrics live in a
// private registry so tests and embedding programs do not collide with the
// global one. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "racesync"

// Pass outcomes.
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeDryRun    = "dry_run"
	OutcomeFailed    = "failed"
	OutcomeCanceled  = "canceled"
)

// Metrics records reconciliation activity.
type Metrics struct {
	registry *prometheus.Registry

	passes         *prometheus.CounterVec
	fieldsWritten  *prometheus.CounterVec
	protectedSkips *prometheus.CounterVec
	parseFailures  *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	passDuration   prometheus.Histogram
}

// New creates metrics registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.passes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "passes_total",
		Help:      "Reconciliation passes by outcome",
	}, []string{"outcome"})
	m.fieldsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fields_written_total",
		Help:      "Fields written by automated passes",
	}, []string{"scope"})
	m.protectedSkips = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "protected_skips_total",
		Help:      "Candidate values dropped because the field was manually fixed",
	}, []string{"scope"})
	m.parseFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "parse_failures_total",
		Help:      "Raw values that could not be normalized",
	}, []string{"field"})
	m.sourceFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_failures_total",
		Help:      "Collectors that errored or timed out",
	}, []string{"source"})
	m.passDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pass_duration_seconds",
		Help:      "Time spent reconciling one event",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	})

	m.registry.MustRegister(
		m.passes,
		m.fieldsWritten,
		m.protectedSkips,
		m.parseFailures,
		m.sourceFailures,
		m.passDuration,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Pass records the end of a reconciliation pass.
func (m *Metrics) Pass(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(outcome).Inc()
	m.passDuration.Observe(d.Seconds())
}

// FieldsWritten counts fields an automated pass changed.
func (m *Metrics) FieldsWritten(scope string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.fieldsWritten.WithLabelValues(scope).Add(float64(n))
}

// ProtectedSkip counts one candidate dropped for a protected field.
func (m *Metrics) ProtectedSkip(scope string) {
	if m == nil {
		return
	}
	m.protectedSkips.WithLabelValues(scope).Inc()
}

// ParseFailure counts one raw value that failed normalization.
func (m *Metrics) ParseFailure(field string) {
	if m == nil {
		return
	}
	m.parseFailures.WithLabelValues(field).Inc()
}

// SourceFailure counts one unavailable collector.
func (m *Metrics) SourceFailure(source string) {
	if m == nil {
		return
	}
	m.sourceFailures.WithLabelValues(source).Inc()
}

// WriteTextfile writes every metric in the text exposition format, for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
