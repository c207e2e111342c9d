// Package metrics exports session counters in the Prometheus text format,
// for pickup by a node_exporter textfile collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ccollicutt/falllog/pkg/output"
)

const namespace = "falllog"

// Metrics contains all session metrics.
type Metrics struct {
	registry *prometheus.Registry

	Sessions    *prometheus.CounterVec
	Lines       *prometheus.CounterVec
	LineErrors  *prometheus.CounterVec
	Events      *prometheus.CounterVec
	Samples     prometheus.Counter
	Regressions prometheus.Counter

	LastSessionTimestamp prometheus.Gauge
	LastPeakMagnitude    prometheus.Gauge
	LastFallDetected     prometheus.Gauge
}

// New creates a Metrics instance on its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sessions",
				Name:      "total",
				Help:      "Total number of sessions by termination",
			},
			[]string{"termination"},
		),

		Lines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lines",
				Name:      "total",
				Help:      "Total number of received lines by frame kind",
			},
			[]string{"kind"},
		),

		LineErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "line_errors",
				Name:      "total",
				Help:      "Total number of malformed data rows by reason",
			},
			[]string{"reason"},
		),

		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "total",
				Help:      "Total number of detected motion events by type",
			},
			[]string{"type"},
		),

		Samples: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "samples",
				Name:      "total",
				Help:      "Total number of accepted samples",
			},
		),

		Regressions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "index",
				Name:      "regressions_total",
				Help:      "Total number of samples whose index went backwards",
			},
		),

		LastSessionTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "last_session",
				Name:      "timestamp_seconds",
				Help:      "Unix time the last session started",
			},
		),

		LastPeakMagnitude: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "last_session",
				Name:      "peak_magnitude_g",
				Help:      "Peak acceleration magnitude of the last session in g",
			},
		),

		LastFallDetected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "last_session",
				Name:      "fall_detected",
				Help:      "Whether the last session contained a fall (0=no, 1=yes)",
			},
		),
	}

	m.registry.MustRegister(
		m.Sessions,
		m.Lines,
		m.LineErrors,
		m.Events,
		m.Samples,
		m.Regressions,
		m.LastSessionTimestamp,
		m.LastPeakMagnitude,
		m.LastFallDetected,
	)

	return m
}

// Record adds one session to the metrics.
func (m *Metrics) Record(report *output.Report) {
	m.Sessions.WithLabelValues(string(report.Session.Termination)).Inc()

	for kind, n := range report.FrameCounts {
		m.Lines.WithLabelValues(string(kind)).Add(float64(n))
	}
	for _, e := range report.Errors {
		m.LineErrors.WithLabelValues(string(e.Reason)).Inc()
	}
	for _, e := range report.Events {
		m.Events.WithLabelValues(string(e.Type)).Inc()
	}

	m.Samples.Add(float64(report.Summary.Samples))
	m.Regressions.Add(float64(report.Summary.Regressions))

	if !report.Session.StartedAt.IsZero() {
		m.LastSessionTimestamp.Set(float64(report.Session.StartedAt.Unix()))
	}
	m.LastPeakMagnitude.Set(report.Stats.PeakMagnitudeG)
	if report.Summary.FallDetected {
		m.LastFallDetected.Set(1)
	} else {
		m.LastFallDetected.Set(0)
	}
}

// WriteTextfile atomically writes the current metrics to path.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
