// Package promexport adapts pkg/metrics.Recorder onto Prometheus client
// vectors. It is an optional, collaborator-facing convenience — the core
// engine never imports this package; spec §1 explicitly scopes metrics
// backends out of the core.
package promexport

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements metrics.Recorder backed by Prometheus CounterVec and
// HistogramVec collectors, created lazily per metric name since the engine's
// label sets vary by call site (e.g. per contributor id, per cache layer).
type Recorder struct {
	registry *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// New creates a Recorder registered against reg. Pass prometheus.NewRegistry()
// for an isolated registry, or nil to use the default global one.
func New(reg *prometheus.Registry) *Recorder {
	return &Recorder{
		registry:   reg,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	return names
}

func (r *Recorder) counterVec(name string, labels map[string]string) *prometheus.CounterVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cv, ok := r.counters[name]; ok {
		return cv
	}
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: sanitize(name),
		Help: name,
	}, labelNames(labels))
	if r.registry != nil {
		r.registry.MustRegister(cv)
	} else {
		prometheus.MustRegister(cv)
	}
	r.counters[name] = cv
	return cv
}

func (r *Recorder) histogramVec(name string, labels map[string]string) *prometheus.HistogramVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hv, ok := r.histograms[name]; ok {
		return hv
	}
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: sanitize(name),
		Help: name,
	}, labelNames(labels))
	if r.registry != nil {
		r.registry.MustRegister(hv)
	} else {
		prometheus.MustRegister(hv)
	}
	r.histograms[name] = hv
	return hv
}

// IncCounter implements metrics.Recorder.
func (r *Recorder) IncCounter(name string, labels map[string]string) {
	r.counterVec(name, labels).With(labels).Inc()
}

// ObserveHistogram implements metrics.Recorder.
func (r *Recorder) ObserveHistogram(name string, value float64, labels map[string]string) {
	r.histogramVec(name, labels).With(labels).Observe(value)
}

// sanitize replaces characters Prometheus metric names disallow (engine
// metric names use dots, e.g. "aggregator.resolutions_total").
func sanitize(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '.' || c == '-' {
			out[i] = '_'
		} else {
			out[i] = c
		}
	}
	return string(out)
}
