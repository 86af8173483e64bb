package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBoltLayer(t *testing.T) *BoltLayer {
	t.Helper()
	path := filepath.Join(t.TempDir(), "l2.db")
	layer, err := OpenBoltLayer(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = layer.Close() })
	return layer
}

func TestBoltLayer_SetGetRoundTrip(t *testing.T) {
	layer := newTestBoltLayer(t)
	ctx := context.Background()

	require.NoError(t, layer.Set(ctx, "k", []byte("v"), time.Hour))
	value, ok, err := layer.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), value)
	assert.Equal(t, int64(1), layer.Stats().Hits)
}

func TestBoltLayer_MissIncrementsMisses(t *testing.T) {
	layer := newTestBoltLayer(t)
	_, ok, err := layer.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), layer.Stats().Misses)
}

func TestBoltLayer_ExpiredEntryIsEvictedOnRead(t *testing.T) {
	layer := newTestBoltLayer(t)
	ctx := context.Background()

	require.NoError(t, layer.Set(ctx, "k", []byte("v"), time.Nanosecond))
	time.Sleep(5 * time.Millisecond)

	_, ok, err := layer.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), layer.Stats().Evictions)
}

func TestBoltLayer_DeleteAndClear(t *testing.T) {
	layer := newTestBoltLayer(t)
	ctx := context.Background()

	require.NoError(t, layer.Set(ctx, "a", []byte("1"), time.Hour))
	require.NoError(t, layer.Set(ctx, "b", []byte("2"), time.Hour))

	require.NoError(t, layer.Delete(ctx, "a"))
	_, ok, err := layer.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, layer.Clear(ctx))
	assert.Equal(t, int64(0), layer.Stats().Entries)
}

func TestBoltLayer_KeysFiltersByPrefix(t *testing.T) {
	layer := newTestBoltLayer(t)
	ctx := context.Background()

	require.NoError(t, layer.Set(ctx, "actor:a:1:0", []byte("x"), time.Hour))
	require.NoError(t, layer.Set(ctx, "actor:a:2:0", []byte("x"), time.Hour))
	require.NoError(t, layer.Set(ctx, "actor:b:1:0", []byte("x"), time.Hour))

	keys, err := layer.Keys(ctx, "actor:a:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"actor:a:1:0", "actor:a:2:0"}, keys)
}

func TestBoltLayer_SweepRemovesOnlyExpiredEntries(t *testing.T) {
	layer := newTestBoltLayer(t)
	ctx := context.Background()

	require.NoError(t, layer.Set(ctx, "stale", []byte("x"), time.Nanosecond))
	require.NoError(t, layer.Set(ctx, "fresh", []byte("x"), time.Hour))
	time.Sleep(5 * time.Millisecond)

	removed, err := layer.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok, err := layer.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)
}
