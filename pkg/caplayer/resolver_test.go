package caplayer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actorcore/engine/pkg/statcore"
)

func TestEffectiveCaps_ScenarioE_IntersectAcrossLayers(t *testing.T) {
	reg := New([]string{"innate", "equipment"}, statcore.PolicyIntersect)
	contribs := []statcore.CapContribution{
		{Dimension: "health", Mode: statcore.CapModeHardMax, Kind: statcore.CapKindMax, Value: 500, Layer: "innate", System: "base"},
		{Dimension: "health", Mode: statcore.CapModeHardMax, Kind: statcore.CapKindMax, Value: 400, Layer: "equipment", System: "gear"},
	}

	caps, inconsistencies := reg.EffectiveCaps(contribs)
	require.Empty(t, inconsistencies)
	require.Contains(t, caps, "health")
	assert.InDelta(t, 400, caps["health"].Max, 1e-9)
}

func TestEffectiveCaps_ScenarioF_CrossLayerInconsistencyLeavesUncapped(t *testing.T) {
	reg := New([]string{"innate", "buffs"}, statcore.PolicyIntersect)
	contribs := []statcore.CapContribution{
		{Dimension: "health", Mode: statcore.CapModeHardMin, Kind: statcore.CapKindMin, Value: 600, Layer: "innate", System: "base"},
		{Dimension: "health", Mode: statcore.CapModeHardMax, Kind: statcore.CapKindMax, Value: 400, Layer: "buffs", System: "debuff"},
	}

	caps, inconsistencies := reg.EffectiveCaps(contribs)
	_, present := caps["health"]
	assert.False(t, present)

	require.Len(t, inconsistencies, 1)
	assert.Equal(t, "health", inconsistencies[0].Dimension)
	assert.Equal(t, []string{"innate", "buffs"}, inconsistencies[0].Layers)
}

func TestEffectiveCaps_HardMinMonotone(t *testing.T) {
	reg := New([]string{"innate"}, statcore.PolicyIntersect)

	base := []statcore.CapContribution{
		{Dimension: "health", Mode: statcore.CapModeHardMin, Kind: statcore.CapKindMin, Value: 10, Layer: "innate", System: "base"},
	}
	capsBase, _ := reg.EffectiveCaps(base)

	raised := append(base, statcore.CapContribution{
		Dimension: "health", Mode: statcore.CapModeHardMin, Kind: statcore.CapKindMin, Value: 50, Layer: "innate", System: "buff",
	})
	capsRaised, _ := reg.EffectiveCaps(raised)

	assert.GreaterOrEqual(t, capsRaised["health"].Min, capsBase["health"].Min)
}

func TestEffectiveCaps_HardMaxMonotone(t *testing.T) {
	reg := New([]string{"innate"}, statcore.PolicyIntersect)

	base := []statcore.CapContribution{
		{Dimension: "health", Mode: statcore.CapModeHardMax, Kind: statcore.CapKindMax, Value: 1000, Layer: "innate", System: "base"},
	}
	capsBase, _ := reg.EffectiveCaps(base)

	lowered := append(base, statcore.CapContribution{
		Dimension: "health", Mode: statcore.CapModeHardMax, Kind: statcore.CapKindMax, Value: 300, Layer: "innate", System: "debuff",
	})
	capsLowered, _ := reg.EffectiveCaps(lowered)

	assert.LessOrEqual(t, capsLowered["health"].Max, capsBase["health"].Max)
}

func TestEffectiveCaps_UnionWidensAcrossLayers(t *testing.T) {
	reg := New([]string{"innate", "equipment"}, statcore.PolicyUnion)
	contribs := []statcore.CapContribution{
		{Dimension: "health", Mode: statcore.CapModeHardMax, Kind: statcore.CapKindMax, Value: 500, Layer: "innate", System: "base"},
		{Dimension: "health", Mode: statcore.CapModeHardMax, Kind: statcore.CapKindMax, Value: 400, Layer: "equipment", System: "gear"},
	}

	caps, inconsistencies := reg.EffectiveCaps(contribs)
	require.Empty(t, inconsistencies)
	assert.InDelta(t, 500, caps["health"].Max, 1e-9)
}

func TestEffectiveCaps_PrioritizedOverridePinsFirstLayerTouchingEachBound(t *testing.T) {
	reg := New([]string{"innate", "equipment"}, statcore.PolicyPrioritizedOverride)
	contribs := []statcore.CapContribution{
		{Dimension: "health", Mode: statcore.CapModeBaseline, Kind: statcore.CapKindMin, Value: 0, Layer: "innate", System: "base"},
		{Dimension: "health", Mode: statcore.CapModeBaseline, Kind: statcore.CapKindMax, Value: 500, Layer: "innate", System: "base"},
		{Dimension: "health", Mode: statcore.CapModeBaseline, Kind: statcore.CapKindMax, Value: 999, Layer: "equipment", System: "gear"},
	}

	caps, inconsistencies := reg.EffectiveCaps(contribs)
	require.Empty(t, inconsistencies)
	// innate pins both min and max first in layer order; equipment's max
	// never gets a chance since maxPinned was already set by innate.
	assert.InDelta(t, 0, caps["health"].Min, 1e-9)
	assert.InDelta(t, 500, caps["health"].Max, 1e-9)
}

func TestEffectiveCaps_WithinLayerBaselineStackingLastSortedWins(t *testing.T) {
	reg := New([]string{"innate"}, statcore.PolicyIntersect)
	contribs := []statcore.CapContribution{
		{Dimension: "health", Mode: statcore.CapModeBaseline, Kind: statcore.CapKindMax, Value: 100, Layer: "innate", System: "a", Priority: 1},
		{Dimension: "health", Mode: statcore.CapModeBaseline, Kind: statcore.CapKindMax, Value: 200, Layer: "innate", System: "b", Priority: 2},
	}

	caps, inconsistencies := reg.EffectiveCaps(contribs)
	require.Empty(t, inconsistencies)
	// sorted priority ascending, so priority-2 (b, value 200) applies last.
	assert.InDelta(t, 200, caps["health"].Max, 1e-9)
}

func TestSetLayerOrder_RejectsReorderOfPinnedLayers(t *testing.T) {
	reg := New([]string{"innate", "equipment", "buffs"}, statcore.PolicyIntersect)
	err := reg.SetLayerOrder([]string{"equipment", "innate", "buffs"})
	assert.ErrorIs(t, err, statcore.ErrLayerOrderConflict)
}

func TestSetLayerOrder_AllowsAppendingNewLayers(t *testing.T) {
	reg := New([]string{"innate", "equipment"}, statcore.PolicyIntersect)
	err := reg.SetLayerOrder([]string{"innate", "equipment", "buffs"})
	require.NoError(t, err)
	assert.Equal(t, []string{"innate", "equipment", "buffs"}, reg.LayerOrder())
}
