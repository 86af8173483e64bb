package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// MultiLayerCache orchestrates L1/L2/L3 per spec §4.6: read-through
// promotion on the way up, write-through (L1/L2 synchronous, L3
// best-effort/async) on the way down. L3 is optional — an embedder that
// only wants L1/L2 passes a nil l3.
type MultiLayerCache struct {
	l1  Layer
	l2  Layer
	l3  Layer
	log *slog.Logger
}

// New builds a MultiLayerCache. l2 and l3 may be nil to disable those
// layers entirely (e.g. tests that only want L1).
func New(l1, l2, l3 Layer, log *slog.Logger) *MultiLayerCache {
	if log == nil {
		log = slog.Default()
	}
	return &MultiLayerCache{l1: l1, l2: l2, l3: l3, log: log}
}

// Get implements the read path: L1 → L2 → L3, promoting on every hit below
// L1. A failed promotion is logged, not surfaced — caching is never
// correctness-critical (spec §4.6).
func (c *MultiLayerCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.l1 != nil {
		if v, ok, err := c.l1.Get(ctx, key); err != nil {
			c.log.Warn("cache: l1 get failed", "key", key, "error", err)
		} else if ok {
			return v, true
		}
	}

	if c.l2 != nil {
		if v, ok, err := c.l2.Get(ctx, key); err != nil {
			c.log.Warn("cache: l2 get failed", "key", key, "error", err)
		} else if ok {
			c.promote(ctx, c.l1, key, v)
			return v, true
		}
	}

	if c.l3 != nil {
		if v, ok, err := c.l3.Get(ctx, key); err != nil {
			c.log.Warn("cache: l3 get failed", "key", key, "error", err)
		} else if ok {
			c.promote(ctx, c.l2, key, v)
			c.promote(ctx, c.l1, key, v)
			return v, true
		}
	}

	return nil, false
}

func (c *MultiLayerCache) promote(ctx context.Context, layer Layer, key string, value []byte) {
	if layer == nil {
		return
	}
	if err := layer.Set(ctx, key, value, DefaultTTL); err != nil {
		c.log.Warn("cache: promotion failed", "key", key, "error", err)
	}
}

// Set implements the write path: L1 and L2 synchronously, L3 asynchronously
// on a detached goroutine (spec §4.6). The caller's result never depends on
// L3 succeeding.
func (c *MultiLayerCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if c.l1 != nil {
		if err := c.l1.Set(ctx, key, value, ttl); err != nil {
			c.log.Warn("cache: l1 set failed", "key", key, "error", err)
		}
	}
	if c.l2 != nil {
		if err := c.l2.Set(ctx, key, value, ttl); err != nil {
			c.log.Warn("cache: l2 set failed", "key", key, "error", err)
		}
	}
	if c.l3 != nil {
		l3 := c.l3
		log := c.log
		go func() {
			bg := context.Background()
			if err := l3.Set(bg, key, value, ttl); err != nil {
				log.Warn("cache: l3 async set failed", "key", key, "error", err)
			}
		}()
	}
}

// Delete fans out to every configured layer.
func (c *MultiLayerCache) Delete(ctx context.Context, key string) {
	for _, layer := range []Layer{c.l1, c.l2, c.l3} {
		if layer == nil {
			continue
		}
		if err := layer.Delete(ctx, key); err != nil {
			c.log.Warn("cache: delete failed", "key", key, "error", err)
		}
	}
}

// Clear clears every configured layer.
func (c *MultiLayerCache) Clear(ctx context.Context) {
	for _, layer := range []Layer{c.l1, c.l2, c.l3} {
		if layer == nil {
			continue
		}
		if err := layer.Clear(ctx); err != nil {
			c.log.Warn("cache: clear failed", "error", err)
		}
	}
}

// InvalidateActor deletes every key sharing actorID's prefix ("actor:<id>:")
// across every configured layer (spec §4.6).
func (c *MultiLayerCache) InvalidateActor(ctx context.Context, actorID string) {
	prefix := "actor:" + actorID + ":"
	for _, layer := range []Layer{c.l1, c.l2, c.l3} {
		if layer == nil {
			continue
		}
		keys, err := layer.Keys(ctx, prefix)
		if err != nil {
			c.log.Warn("cache: invalidate_actor key scan failed", "actor_id", actorID, "error", err)
			continue
		}
		for _, k := range keys {
			if err := layer.Delete(ctx, k); err != nil {
				c.log.Warn("cache: invalidate_actor delete failed", "key", k, "error", err)
			}
		}
	}
}

// LayerStats returns the current Stats for each configured layer, keyed by
// name ("l1", "l2", "l3") — feeds cache.<layer>.hits_total /
// cache.<layer>.evictions_total (spec §6).
func (c *MultiLayerCache) LayerStats() map[string]Stats {
	out := make(map[string]Stats, 3)
	if c.l1 != nil {
		out["l1"] = c.l1.Stats()
	}
	if c.l2 != nil {
		out["l2"] = c.l2.Stats()
	}
	if c.l3 != nil {
		out["l3"] = c.l3.Stats()
	}
	return out
}

// KeysWithPrefix merges the key sets of every configured layer that share
// prefix, deduplicated. Used by collaborators that need to enumerate an
// actor's cached versions (e.g. get_cached_snapshot by actor id alone).
func (c *MultiLayerCache) KeysWithPrefix(ctx context.Context, prefix string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, layer := range []Layer{c.l1, c.l2, c.l3} {
		if layer == nil {
			continue
		}
		keys, err := layer.Keys(ctx, prefix)
		if err != nil {
			c.log.Warn("cache: key scan failed", "prefix", prefix, "error", err)
			continue
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

// Key builds the canonical cache key for an actor snapshot — spec §6,
// "Persisted state layout": `actor:<uuid>:<version>:<reg_epoch>`.
func Key(actorID string, version, regEpoch int64) string {
	return fmt.Sprintf("actor:%s:%d:%d", actorID, version, regEpoch)
}
