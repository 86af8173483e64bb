// Package cache implements the Multi-Layer Cache (spec §4.6): three
// cooperating layers of progressively larger capacity and slower access,
// with read-through promotion and write-through invalidation.
package cache

import (
	"context"
	"time"
)

// Stats is the per-layer counter set surfaced through pkg/metrics
// (cache.<layer>.hits_total / cache.<layer>.evictions_total).
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int64
}

// Layer is the capability set every cache layer must provide (spec §6,
// "Cache backend (per layer)"). Values are opaque byte buffers — the core
// never inspects what a layer stores.
type Layer interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Stats() Stats
	// Keys returns every key currently held with the given prefix, used by
	// invalidate_actor (spec §4.6). Layers with no efficient prefix scan
	// (e.g. a remote KV store) may return a conservative superset.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// DefaultTTL is applied when a caller passes a zero ttl to Set — 30 minutes
// for L1/L2, per spec §4.6. L3 backends may apply their own, longer default.
const DefaultTTL = 30 * time.Minute

// EvictionPolicy selects L1's in-process eviction discipline (spec §4.6:
// "LRU (configurable: LFU/FIFO/Random/TTL)").
type EvictionPolicy string

const (
	EvictionLRU    EvictionPolicy = "lru"
	EvictionLFU    EvictionPolicy = "lfu"
	EvictionFIFO   EvictionPolicy = "fifo"
	EvictionRandom EvictionPolicy = "random"
	EvictionTTL    EvictionPolicy = "ttl"
)
