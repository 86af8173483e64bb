package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/actorcore/engine/pkg/cache/pgcache"
)

// PgLayerAdapter wraps pgcache.Layer to satisfy Layer, translating its
// ctx-taking Stats into the synchronous Stats() every other layer exposes.
// Hit/miss counters are tracked here rather than in pgcache itself since
// Postgres has no equivalent of bbolt's/golang-lru's in-process bookkeeping.
// Expired rows deleted inside pgcache are not observed here, so Evictions
// stays 0.
type PgLayerAdapter struct {
	inner *pgcache.Layer

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

func NewPgLayerAdapter(inner *pgcache.Layer) *PgLayerAdapter {
	return &PgLayerAdapter{inner: inner}
}

func (p *PgLayerAdapter) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := p.inner.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		p.misses.Add(1)
		return nil, false, nil
	}
	p.hits.Add(1)
	return v, true, nil
}

func (p *PgLayerAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.inner.Set(ctx, key, value, ttl)
}

func (p *PgLayerAdapter) Delete(ctx context.Context, key string) error {
	return p.inner.Delete(ctx, key)
}

func (p *PgLayerAdapter) Clear(ctx context.Context) error {
	return p.inner.Clear(ctx)
}

func (p *PgLayerAdapter) Keys(ctx context.Context, prefix string) ([]string, error) {
	return p.inner.Keys(ctx, prefix)
}

func (p *PgLayerAdapter) Stats() Stats {
	entries, err := p.inner.Stats(context.Background())
	if err != nil {
		entries = -1
	}
	return Stats{
		Hits:      p.hits.Load(),
		Misses:    p.misses.Load(),
		Evictions: p.evictions.Load(),
		Entries:   entries,
	}
}

func (p *PgLayerAdapter) Close() {
	p.inner.Close()
}
