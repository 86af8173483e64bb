package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryRecorder_IncCounterAccumulatesPerLabelSet(t *testing.T) {
	r := NewInMemoryRecorder()
	r.IncCounter(MetricContributorErrors, map[string]string{"system_id": "fire"})
	r.IncCounter(MetricContributorErrors, map[string]string{"system_id": "fire"})
	r.IncCounter(MetricContributorErrors, map[string]string{"system_id": "water"})

	assert.Equal(t, float64(2), r.Counter(MetricContributorErrors, map[string]string{"system_id": "fire"}))
	assert.Equal(t, float64(1), r.Counter(MetricContributorErrors, map[string]string{"system_id": "water"}))
}

func TestInMemoryRecorder_ObserveHistogramAppendsSamples(t *testing.T) {
	r := NewInMemoryRecorder()
	r.ObserveHistogram(MetricResolveDurationUs, 120, nil)
	r.ObserveHistogram(MetricResolveDurationUs, 80, nil)

	assert.Equal(t, []float64{120, 80}, r.HistogramSamples(MetricResolveDurationUs, nil))
}

func TestInMemoryRecorder_LabelOrderDoesNotAffectKey(t *testing.T) {
	r := NewInMemoryRecorder()
	r.IncCounter("x", map[string]string{"a": "1", "b": "2"})
	assert.Equal(t, float64(1), r.Counter("x", map[string]string{"b": "2", "a": "1"}))
}
