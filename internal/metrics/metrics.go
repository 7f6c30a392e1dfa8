// Package metrics defines the minimal instrumentation surface the pipeline
// core emits to. The core depends only on Backend; concrete backends
// (Datadog, Prometheus Pushgateway) live in subpackages and are selected at
// startup. The default backend discards everything, so instrumented code
// never needs a nil check.
package metrics

import "sync"

// Labels are the dimension tags attached to an observation.
type Labels map[string]string

// Backend receives observations from the pipeline.
//
// Implementations must be safe for concurrent use. Unknown metric names may
// be ignored.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	SetGauge(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer observations. Flush is
// called once at the end of a run so short-lived jobs still report.
type Flusher interface {
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) SetGauge(string, float64, Labels)         {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. Pass nil to restore the
// discarding default.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to the named counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample of the named distribution.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// SetGauge records the current value of the named gauge.
func SetGauge(name string, value float64, labels Labels) {
	current().SetGauge(name, value, labels)
}

// Flush drains the installed backend if it buffers. A nop for backends that
// submit synchronously.
func Flush() error {
	if f, ok := current().(Flusher); ok {
		return f.Flush()
	}
	return nil
}
