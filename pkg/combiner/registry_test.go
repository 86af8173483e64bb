package combiner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actorcore/engine/pkg/statcore"
)

func pri(p int64) *int64 { return &p }

func TestGetRule_FallsBackToDefault(t *testing.T) {
	r := New()
	assert.Equal(t, statcore.DefaultMergeRule(), r.GetRule("unconfigured"))
}

func TestSetRule_Overrides(t *testing.T) {
	r := New()
	rule := statcore.MergeRule{Operator: statcore.OperatorMax}
	r.SetRule("armor", rule)
	assert.Equal(t, rule, r.GetRule("armor"))
}

func TestApplySimple_Sum(t *testing.T) {
	rule := statcore.MergeRule{Operator: statcore.OperatorSum}
	contribs := []statcore.Contribution{{Value: 3}, {Value: 4}}
	v, ok := ApplySimple(rule, contribs)
	require.True(t, ok)
	assert.InDelta(t, 7, v, 1e-9)
}

func TestApplySimple_EmptyOmitsDimension(t *testing.T) {
	rule := statcore.MergeRule{Operator: statcore.OperatorAverage}
	_, ok := ApplySimple(rule, nil)
	assert.False(t, ok)
}

func TestApplySimple_Average(t *testing.T) {
	rule := statcore.MergeRule{Operator: statcore.OperatorAverage}
	contribs := []statcore.Contribution{{Value: 2}, {Value: 4}, {Value: 6}}
	v, ok := ApplySimple(rule, contribs)
	require.True(t, ok)
	assert.InDelta(t, 4, v, 1e-9)
}

func TestApplySimple_OverrideTieBreakBySystemID(t *testing.T) {
	rule := statcore.MergeRule{Operator: statcore.OperatorOverride}
	contribs := []statcore.Contribution{
		{Value: 10, System: "alpha", Priority: pri(1)},
		{Value: 20, System: "beta", Priority: pri(1)},
	}
	v, ok := ApplySimple(rule, contribs)
	require.True(t, ok)
	assert.InDelta(t, 20, v, 1e-9)
}

func TestApplyConcat_PriorityDescendingOrder(t *testing.T) {
	contribs := []statcore.Contribution{
		{System: "low", Priority: pri(1), Tags: []string{"B"}},
		{System: "high", Priority: pri(5), Tags: []string{"A"}},
	}
	out, ok := ApplyConcat(contribs, func(c statcore.Contribution) string {
		if len(c.Tags) == 0 {
			return ""
		}
		return c.Tags[0]
	})
	require.True(t, ok)
	assert.Equal(t, "AB", out)
}

func TestApplyConcat_EmptyOmits(t *testing.T) {
	_, ok := ApplyConcat(nil, func(statcore.Contribution) string { return "" })
	assert.False(t, ok)
}
