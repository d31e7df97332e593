// Package observability wires structured logging and Prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cdo_batch"

// Metrics holds the Prometheus collectors for one converter process.
type Metrics struct {
	FilesDiscovered    prometheus.Gauge
	Conversions        *prometheus.CounterVec // labels: outcome={converted,failed,skipped,planned}
	ConversionDuration prometheus.Histogram
	RunDuration        prometheus.Gauge
	LastRunTimestamp   prometheus.Gauge
	LastRunSuccess     prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates the collectors on a private registry so a single process
// can export them as a node_exporter textfile.
func NewMetrics() *Metrics {
	m := &Metrics{
		FilesDiscovered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "files_discovered",
			Help:      "Entries matching the source extension in the last run.",
		}),
		Conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Per-file conversion outcomes.",
		}, []string{"outcome"}),
		ConversionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Wall time of a single cdo invocation.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last batch run.",
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last batch run finished.",
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 when the last run had no failed conversions, 0 otherwise.",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.FilesDiscovered,
		m.Conversions,
		m.ConversionDuration,
		m.RunDuration,
		m.LastRunTimestamp,
		m.LastRunSuccess,
	)

	return m
}

// Gatherer exposes the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes all collected metrics in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
