package aggregator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actorcore/engine/pkg/statcore"
)

// TestDeterminism_RepeatedResolvesAgreeModuloCacheMetadata covers spec's
// universal invariant 1: a fixed registry and (actor, version) produce
// byte-identical snapshots modulo created_at/cache_hit.
func TestDeterminism_RepeatedResolvesAgreeModuloCacheMetadata(t *testing.T) {
	agg, reg := newTestAggregator(t)
	require.NoError(t, reg.Register(&fnContributor{id: "base", priority: 1, fn: func(ctx context.Context) (statcore.SubsystemOutput, error) {
		return statcore.SubsystemOutput{
			SystemID: "base",
			Primary:  []statcore.Contribution{{Dimension: "strength", System: "base", Value: 10}, {Dimension: "health", System: "base", Value: 100}},
		}, nil
	}}))

	actor := statcore.NewActor("hero", "human", 1)

	first, err := agg.Resolve(context.Background(), actor)
	require.NoError(t, err)

	agg.InvalidateCache(context.Background(), actor.ID)
	second, err := agg.Resolve(context.Background(), actor)
	require.NoError(t, err)

	assert.Equal(t, first.Primary, second.Primary)
	assert.Equal(t, first.Derived, second.Derived)
	assert.Equal(t, first.CapsUsed, second.CapsUsed)
	assert.Equal(t, first.SubsystemsProcessed, second.SubsystemsProcessed)
	assert.Equal(t, first.Partial, second.Partial)
}

// TestCacheSoundness_HitEqualsFreshComputeModuloCacheHit covers spec's
// universal invariant 6.
func TestCacheSoundness_HitEqualsFreshComputeModuloCacheHit(t *testing.T) {
	agg, reg := newTestAggregator(t)
	require.NoError(t, reg.Register(&fnContributor{id: "base", priority: 1, fn: func(ctx context.Context) (statcore.SubsystemOutput, error) {
		return statcore.SubsystemOutput{
			SystemID: "base",
			Primary:  []statcore.Contribution{{Dimension: "strength", System: "base", Value: 10}},
		}, nil
	}}))

	actor := statcore.NewActor("hero", "human", 1)

	fresh, err := agg.Resolve(context.Background(), actor)
	require.NoError(t, err)
	require.False(t, fresh.CacheHit)

	cached, err := agg.Resolve(context.Background(), actor)
	require.NoError(t, err)
	require.True(t, cached.CacheHit)

	assert.Equal(t, fresh.Primary, cached.Primary)
	assert.Equal(t, fresh.Derived, cached.Derived)
	assert.Equal(t, fresh.CapsUsed, cached.CapsUsed)
	assert.Equal(t, fresh.Version, cached.Version)
}

// TestCapContainment_PrimaryValueNeverExceedsResolvedCaps covers spec's
// universal invariant 3.
func TestCapContainment_PrimaryValueNeverExceedsResolvedCaps(t *testing.T) {
	agg, reg := newTestAggregator(t)
	require.NoError(t, reg.Register(&fnContributor{id: "base", priority: 1, fn: func(ctx context.Context) (statcore.SubsystemOutput, error) {
		return statcore.SubsystemOutput{
			SystemID: "base",
			Primary:  []statcore.Contribution{{Dimension: "health", System: "base", Value: 9999}},
			Caps: []statcore.CapContribution{
				{Dimension: "health", Mode: statcore.CapModeHardMax, Kind: statcore.CapKindMax, Value: 250, Layer: "innate", System: "base"},
				{Dimension: "health", Mode: statcore.CapModeHardMin, Kind: statcore.CapKindMin, Value: 10, Layer: "innate", System: "base"},
			},
		}, nil
	}}))

	actor := statcore.NewActor("hero", "human", 1)
	snap, err := agg.Resolve(context.Background(), actor)
	require.NoError(t, err)

	caps, ok := snap.CapsUsed["health"]
	require.True(t, ok)
	assert.GreaterOrEqual(t, snap.Primary["health"], caps.Min)
	assert.LessOrEqual(t, snap.Primary["health"], caps.Max)
}
