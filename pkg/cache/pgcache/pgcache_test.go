package pgcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actorcore/engine/test/util"
)

func newTestLayer(t *testing.T) *Layer {
	t.Helper()
	dsn := util.SetupSchemaDSN(t)
	layer, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(layer.Close)
	return layer
}

func TestOpen_RunsMigrationsAndStartsEmpty(t *testing.T) {
	layer := newTestLayer(t)
	entries, err := layer.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), entries)
}

func TestSetGet_RoundTrip(t *testing.T) {
	layer := newTestLayer(t)
	ctx := context.Background()

	require.NoError(t, layer.Set(ctx, "actor:hero:1:0", []byte("payload"), time.Hour))

	value, ok, err := layer.Get(ctx, "actor:hero:1:0")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), value)
}

func TestGet_MissingKeyIsNotAnError(t *testing.T) {
	layer := newTestLayer(t)
	value, ok, err := layer.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestSet_OverwritesExistingKey(t *testing.T) {
	layer := newTestLayer(t)
	ctx := context.Background()

	require.NoError(t, layer.Set(ctx, "k", []byte("v1"), time.Hour))
	require.NoError(t, layer.Set(ctx, "k", []byte("v2"), time.Hour))

	value, ok, err := layer.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), value)
}

func TestGet_ExpiredEntryIsEvictedOnRead(t *testing.T) {
	layer := newTestLayer(t)
	ctx := context.Background()

	require.NoError(t, layer.Set(ctx, "k", []byte("v"), time.Nanosecond))
	time.Sleep(10 * time.Millisecond)

	value, ok, err := layer.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, value)

	entries, err := layer.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), entries, "expired read should delete the row")
}

func TestDelete_RemovesKey(t *testing.T) {
	layer := newTestLayer(t)
	ctx := context.Background()

	require.NoError(t, layer.Set(ctx, "k", []byte("v"), time.Hour))
	require.NoError(t, layer.Delete(ctx, "k"))

	_, ok, err := layer.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClear_RemovesAllEntries(t *testing.T) {
	layer := newTestLayer(t)
	ctx := context.Background()

	require.NoError(t, layer.Set(ctx, "a", []byte("1"), time.Hour))
	require.NoError(t, layer.Set(ctx, "b", []byte("2"), time.Hour))
	require.NoError(t, layer.Clear(ctx))

	entries, err := layer.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), entries)
}

func TestKeys_FiltersByPrefix(t *testing.T) {
	layer := newTestLayer(t)
	ctx := context.Background()

	require.NoError(t, layer.Set(ctx, "actor:a:1:0", []byte("x"), time.Hour))
	require.NoError(t, layer.Set(ctx, "actor:a:2:0", []byte("x"), time.Hour))
	require.NoError(t, layer.Set(ctx, "actor:b:1:0", []byte("x"), time.Hour))

	keys, err := layer.Keys(ctx, "actor:a:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"actor:a:1:0", "actor:a:2:0"}, keys)
}
