// Package prompush implements a Prometheus Pushgateway backend for the
// internal/metrics package. Batch jobs cannot be scraped, so observations
// accumulate in a private registry and are pushed on Flush; the pipeline
// flushes once at the end of a run.
package prompush

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"ordersetl/internal/metrics"
)

// Options controls Pushgateway backend configuration.
type Options struct {
	// URL is the Pushgateway base URL, e.g. "http://localhost:9091".
	URL string

	// JobName becomes the push job grouping key. Defaults to "ordersetl".
	JobName string
}

// Backend implements metrics.Backend on top of a private Prometheus registry.
type Backend struct {
	pusher   *push.Pusher
	registry *prometheus.Registry

	stepTotal    *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	recordsTotal *prometheus.CounterVec

	mu     sync.Mutex
	gauges map[string]prometheus.Gauge
}

// NewBackend constructs a Pushgateway backend. No network traffic happens
// until Flush.
func NewBackend(opts Options) (*Backend, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("prompush: missing pushgateway url")
	}
	job := opts.JobName
	if job == "" {
		job = "ordersetl"
	}

	reg := prometheus.NewRegistry()

	b := &Backend{
		registry: reg,
		pusher:   push.New(opts.URL, job).Gatherer(reg),

		stepTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "etl_step_total",
			Help: "Pipeline step executions by step and status.",
		}, []string{"step", "status"}),

		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "etl_step_duration_seconds",
			Help:    "Pipeline step duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"step", "status"}),

		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "etl_records_total",
			Help: "Records processed, by dataset kind.",
		}, []string{"kind"}),

		gauges: make(map[string]prometheus.Gauge),
	}

	reg.MustRegister(b.stepTotal, b.stepDuration, b.recordsTotal)
	return b, nil
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	switch name {
	case "etl_step_total":
		b.stepTotal.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case "etl_records_total":
		kind := labels["kind"]
		if kind == "" {
			return
		}
		b.recordsTotal.WithLabelValues(kind).Add(delta)
	default:
		// Unknown counters are dropped.
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}

	switch name {
	case "etl_step_duration_seconds":
		b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
	default:
		// Unknown histograms are dropped.
	}
}

// SetGauge implements metrics.Backend. Gauges register lazily by name, so
// quality gauges the run never computes stay absent from the push.
func (b *Backend) SetGauge(name string, value float64, labels metrics.Labels) {
	b.mu.Lock()
	g, ok := b.gauges[name]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: name,
			Help: "Run-level quality gauge.",
		})
		if err := b.registry.Register(g); err != nil {
			b.mu.Unlock()
			return
		}
		b.gauges[name] = g
	}
	b.mu.Unlock()

	g.Set(value)
}

// Flush pushes the registry's current state to the gateway, replacing any
// previous push for the same job.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}

var (
	_ metrics.Backend = (*Backend)(nil)
	_ metrics.Flusher = (*Backend)(nil)
)
