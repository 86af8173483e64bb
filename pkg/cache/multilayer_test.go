package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiLayerCache_L2HitPromotesToL1(t *testing.T) {
	ctx := context.Background()
	l1 := NewMemoryLayer(4, EvictionLRU)
	l2 := NewMemoryLayer(4, EvictionLRU)
	require.NoError(t, l2.Set(ctx, "k", []byte("v"), time.Minute))

	mc := New(l1, l2, nil, nil)
	v, ok := mc.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", string(v))

	// now present in l1 too
	v1, ok1, _ := l1.Get(ctx, "k")
	require.True(t, ok1)
	assert.Equal(t, "v", string(v1))
}

func TestMultiLayerCache_SetWritesThroughL1AndL2(t *testing.T) {
	ctx := context.Background()
	l1 := NewMemoryLayer(4, EvictionLRU)
	l2 := NewMemoryLayer(4, EvictionLRU)
	mc := New(l1, l2, nil, nil)

	mc.Set(ctx, "k", []byte("v"), time.Minute)

	_, ok1, _ := l1.Get(ctx, "k")
	_, ok2, _ := l2.Get(ctx, "k")
	assert.True(t, ok1)
	assert.True(t, ok2)
}

func TestMultiLayerCache_InvalidateActorDeletesAcrossLayers(t *testing.T) {
	ctx := context.Background()
	l1 := NewMemoryLayer(8, EvictionLRU)
	l2 := NewMemoryLayer(8, EvictionLRU)
	mc := New(l1, l2, nil, nil)

	mc.Set(ctx, Key("actor-1", 1, 0), []byte("snap-v1"), time.Minute)
	mc.Set(ctx, Key("actor-1", 2, 0), []byte("snap-v2"), time.Minute)
	mc.Set(ctx, Key("actor-2", 1, 0), []byte("other-actor"), time.Minute)

	mc.InvalidateActor(ctx, "actor-1")

	_, ok := mc.Get(ctx, Key("actor-1", 1, 0))
	assert.False(t, ok)
	_, ok = mc.Get(ctx, Key("actor-1", 2, 0))
	assert.False(t, ok)
	_, ok = mc.Get(ctx, Key("actor-2", 1, 0))
	assert.True(t, ok)
}

func TestKey_IncorporatesVersionAndEpoch(t *testing.T) {
	assert.Equal(t, "actor:a1:3:7", Key("a1", 3, 7))
}
