package metrics

import (
	"fmt"
	"sort"
	"sync"
)

// InMemoryRecorder accumulates counters and histogram samples under a single
// mutex. It is intended for tests and for embedders that don't want an
// external metrics backend; it mirrors the mutex-guarded counter style used
// throughout the engine's own concurrency-sensitive components rather than
// pulling in a dedicated stats library for what is, here, a handful of
// plain maps.
type InMemoryRecorder struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string][]float64
}

// NewInMemoryRecorder creates an empty recorder.
func NewInMemoryRecorder() *InMemoryRecorder {
	return &InMemoryRecorder{
		counters:   make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func (r *InMemoryRecorder) key(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := name
	for _, k := range keys {
		out += fmt.Sprintf("|%s=%s", k, labels[k])
	}
	return out
}

// IncCounter increments the named counter by 1.
func (r *InMemoryRecorder) IncCounter(name string, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[r.key(name, labels)]++
}

// ObserveHistogram appends a sample to the named histogram.
func (r *InMemoryRecorder) ObserveHistogram(name string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := r.key(name, labels)
	r.histograms[k] = append(r.histograms[k], value)
}

// Counter returns the current value of a counter (0 if never incremented).
func (r *InMemoryRecorder) Counter(name string, labels map[string]string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[r.key(name, labels)]
}

// HistogramSamples returns a copy of the recorded samples for a histogram.
func (r *InMemoryRecorder) HistogramSamples(name string, labels map[string]string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	src := r.histograms[r.key(name, labels)]
	out := make([]float64, len(src))
	copy(out, src)
	return out
}
