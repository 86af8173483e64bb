// Package aggregator implements the Aggregator (spec §4.5): the orchestrator
// that turns a cache lookup, a concurrent contributor fan-out, and the C2-C4
// merge/cap/process stages into a single resolve() call.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/actorcore/engine/pkg/cache"
	"github.com/actorcore/engine/pkg/caplayer"
	"github.com/actorcore/engine/pkg/combiner"
	"github.com/actorcore/engine/pkg/metrics"
	"github.com/actorcore/engine/pkg/pipeline"
	"github.com/actorcore/engine/pkg/registry"
	"github.com/actorcore/engine/pkg/statcore"
)

// Aggregator is the embedder-facing entry point (spec §6, "Inbound").
type Aggregator struct {
	contributors *registry.Registry
	combiner     *combiner.Registry
	capLayers    *caplayer.Registry
	cache        *cache.MultiLayerCache
	metrics      metrics.Recorder
	log          *slog.Logger
	cfg          Config

	sf singleflight.Group

	resolutions atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64

	cacheStatsMu   sync.Mutex
	lastCacheStats map[string]cache.Stats
}

// New wires the Aggregator to its collaborators. rec and log may be nil,
// falling back to a no-op recorder and slog.Default().
func New(contributors *registry.Registry, combinerReg *combiner.Registry, capLayers *caplayer.Registry, c *cache.MultiLayerCache, rec metrics.Recorder, log *slog.Logger, cfg Config) *Aggregator {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{
		contributors: contributors,
		combiner:     combinerReg,
		capLayers:    capLayers,
		cache:        c,
		metrics:      rec,
		log:          log,
		cfg:          cfg.withDefaults(),
	}
}

// BatchResult pairs a resolve_batch slot with its outcome; independent
// failures never abort the batch (spec §4.5).
type BatchResult struct {
	Snapshot *statcore.Snapshot
	Err      error
}

// AggregatorMetrics is the get_metrics() contract (spec §4.5).
type AggregatorMetrics struct {
	ResolutionsTotal int64
	CacheHitsTotal   int64
	CacheMissesTotal int64
	CacheLayers      map[string]cache.Stats
}

// Resolve is resolve(actor) with no extra context (spec §4.5).
func (a *Aggregator) Resolve(ctx context.Context, actor *statcore.Actor) (*statcore.Snapshot, error) {
	return a.ResolveWithContext(ctx, actor, nil)
}

// ResolveWithContext implements the full resolve algorithm (spec §4.5 steps
// 1-8): cache lookup, single-flight collapsed fan-out, merge, cap, write
// through.
func (a *Aggregator) ResolveWithContext(ctx context.Context, actor *statcore.Actor, rctx map[string]any) (*statcore.Snapshot, error) {
	if actor == nil || actor.ID == "" {
		return nil, statcore.ErrInvalidID
	}

	start := time.Now()
	epoch := a.contributors.Epoch()
	version := actor.Version
	key := cacheKey(actor, version, epoch)

	if raw, ok := a.cache.Get(ctx, key); ok {
		var snap statcore.Snapshot
		if err := json.Unmarshal(raw, &snap); err == nil && snap.Version == actor.Version {
			snap.CacheHit = true
			a.cacheHits.Add(1)
			a.metrics.IncCounter(metrics.MetricCacheHitsTotal, nil)
			a.metrics.ObserveHistogram(metrics.MetricResolveDurationUs, float64(time.Since(start).Microseconds()), nil)
			return &snap, nil
		}
		// Stale version or undecodable payload — treat as a miss and drop
		// it (spec §4.5 step 2, §4.6 "Consistency").
		a.cache.Delete(ctx, key)
	}
	a.cacheMisses.Add(1)
	a.metrics.IncCounter(metrics.MetricCacheMissesTotal, nil)

	// Detach from the caller's cancellation for the underlying computation:
	// per spec §4.5, an in-flight single-flight computation runs to
	// completion for the benefit of every waiter even if the caller who
	// triggered it cancels.
	detached := context.WithoutCancel(ctx)
	ch := a.sf.DoChan(key, func() (interface{}, error) {
		return a.resolveUncached(detached, actor, rctx, key, epoch, version)
	})

	select {
	case res := <-ch:
		a.metrics.ObserveHistogram(metrics.MetricResolveDurationUs, float64(time.Since(start).Microseconds()), nil)
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*statcore.Snapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ResolveBatch resolves every actor concurrently and order-preservingly;
// one actor's failure never aborts its siblings (spec §4.5).
func (a *Aggregator) ResolveBatch(ctx context.Context, actors []*statcore.Actor) []BatchResult {
	out := make([]BatchResult, len(actors))
	var wg sync.WaitGroup
	for i, actor := range actors {
		wg.Add(1)
		go func(i int, actor *statcore.Actor) {
			defer wg.Done()
			snap, err := a.ResolveWithContext(ctx, actor, nil)
			out[i] = BatchResult{Snapshot: snap, Err: err}
		}(i, actor)
	}
	wg.Wait()
	return out
}

// resolveUncached is the uncached resolve body passed to singleflight. v0 is
// actor.Version as observed before fan-out began.
func (a *Aggregator) resolveUncached(ctx context.Context, actor *statcore.Actor, rctx map[string]any, key string, epoch, v0 int64) (*statcore.Snapshot, error) {
	contributors := a.contributors.ContributorsFor(actor)
	actorView := actor.Clone()

	outputs := make([]statcore.SubsystemOutput, len(contributors))
	present := make([]bool, len(contributors))
	var skipped []statcore.SkippedSubsystem
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range contributors {
		i, c := i, c
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					skipped = append(skipped, statcore.SkippedSubsystem{SystemID: c.SystemID(), Reason: fmt.Sprintf("panic: %v", r)})
					mu.Unlock()
					a.metrics.IncCounter(metrics.MetricContributorErrors, map[string]string{"system_id": c.SystemID()})
				}
			}()

			cctx, cancel := context.WithTimeout(gctx, a.cfg.ContributorTimeout)
			defer cancel()

			callStart := time.Now()
			out, cErr := c.Contribute(cctx, actorView, rctx)
			if cErr == nil && cctx.Err() != nil {
				cErr = cctx.Err() // returned after its deadline: output discarded
			}
			a.metrics.ObserveHistogram(metrics.MetricContributorDuration, float64(time.Since(callStart).Microseconds()), map[string]string{"system_id": c.SystemID()})

			if cErr != nil {
				a.metrics.IncCounter(metrics.MetricContributorErrors, map[string]string{"system_id": c.SystemID()})
				mu.Lock()
				skipped = append(skipped, statcore.SkippedSubsystem{SystemID: c.SystemID(), Reason: cErr.Error()})
				mu.Unlock()
				return nil // dropped, logged — siblings are never aborted (spec §4.5 step 4)
			}

			mu.Lock()
			outputs[i] = out
			present[i] = true
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, s := range skipped {
		a.log.Warn("contributor dropped from resolve", "system_id", s.SystemID, "reason", s.Reason, "actor_id", actor.ID)
	}

	snap := statcore.NewSnapshot(actor.ID, v0)
	snap.SkippedSubsystems = skipped
	snap.Partial = len(skipped) > 0

	primaryContribs := make(map[string][]statcore.Contribution)
	derivedContribs := make(map[string][]statcore.Contribution)
	var capContribs []statcore.CapContribution
	var processedSystems []string

	for i, out := range outputs {
		if !present[i] {
			continue
		}
		processedSystems = append(processedSystems, out.SystemID)
		for _, c := range out.Primary {
			if c.Valid() {
				primaryContribs[c.Dimension] = append(primaryContribs[c.Dimension], c)
			} else {
				snap.DroppedContributions++
			}
		}
		for _, c := range out.Derived {
			if c.Valid() {
				derivedContribs[c.Dimension] = append(derivedContribs[c.Dimension], c)
			} else {
				snap.DroppedContributions++
			}
		}
		for _, cc := range out.Caps {
			if cc.Valid() {
				capContribs = append(capContribs, cc)
			} else {
				snap.DroppedContributions++
			}
		}
	}
	sort.Strings(processedSystems)
	snap.SubsystemsProcessed = processedSystems

	effectiveCaps, inconsistencies := a.capLayers.EffectiveCaps(capContribs)
	snap.CapInconsistencies = inconsistencies
	if len(inconsistencies) > 0 {
		a.metrics.IncCounter(metrics.MetricCapInconsistencies, nil)
	}

	var numericOverflows []string
	merge := func(dimension string, contribs []statcore.Contribution, out map[string]float64) {
		rule := a.combiner.GetRule(dimension)

		var value float64
		var ok bool
		if rule.UsePipeline {
			res := pipeline.Process(a.cfg.Pipeline, contribs, false, 0, nil)
			if res.Omitted {
				return
			}
			value, ok = res.Value, true
			if res.NumericOverflow {
				numericOverflows = append(numericOverflows, dimension)
			}
		} else {
			value, ok = combiner.ApplySimple(rule, contribs)
		}
		if !ok {
			return
		}

		if caps, has := effectiveCaps[dimension]; has {
			value = caps.Clamp(value)
			out[dimension] = value
			snap.CapsUsed[dimension] = caps
			return
		}
		if rule.ClampDefault != nil {
			value = rule.ClampDefault.Clamp(value)
			snap.CapsUsed[dimension] = *rule.ClampDefault
		}
		out[dimension] = value
	}

	for dim, contribs := range primaryContribs {
		merge(dim, contribs, snap.Primary)
	}
	for dim, contribs := range derivedContribs {
		merge(dim, contribs, snap.Derived)
	}
	snap.NumericOverflows = numericOverflows

	if actor.Version != v0 {
		snap.StaleOnWrite = true
	}

	if payload, err := json.Marshal(snap); err != nil {
		a.log.Warn("resolve: snapshot marshal failed, skipping cache write", "actor_id", actor.ID, "error", err)
	} else {
		a.cache.Set(context.Background(), key, payload, cache.DefaultTTL)
	}

	a.resolutions.Add(1)
	a.metrics.IncCounter(metrics.MetricResolutionsTotal, nil)

	return snap, nil
}

// GetCachedSnapshot returns the most recent cached snapshot for actorID
// across every known version, without triggering a resolve.
func (a *Aggregator) GetCachedSnapshot(ctx context.Context, actorID string) (*statcore.Snapshot, bool) {
	prefix := "actor:" + actorID + ":"
	keys := a.cache.KeysWithPrefix(ctx, prefix)
	if len(keys) == 0 {
		return nil, false
	}

	var bestKey string
	var bestVersion int64 = -1
	for _, k := range keys {
		if v, ok := parseVersion(k, prefix); ok && v > bestVersion {
			bestVersion, bestKey = v, k
		}
	}
	if bestKey == "" {
		return nil, false
	}

	raw, ok := a.cache.Get(ctx, bestKey)
	if !ok {
		return nil, false
	}
	var snap statcore.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false
	}
	snap.CacheHit = true
	return &snap, true
}

func parseVersion(key, prefix string) (int64, bool) {
	rest := strings.TrimPrefix(key, prefix)
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) == 0 {
		return 0, false
	}
	v, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// InvalidateCache drops every cached snapshot for actorID (spec §4.5).
func (a *Aggregator) InvalidateCache(ctx context.Context, actorID string) {
	a.cache.InvalidateActor(ctx, actorID)
}

// ClearCache drops every cached snapshot for every actor.
func (a *Aggregator) ClearCache(ctx context.Context) {
	a.cache.Clear(ctx)
}

// GetMetrics returns the aggregator's own resolve/cache counters, plus each
// cache layer's Stats (SPEC_FULL §11.5: per-layer Stats() surfaced through
// Aggregator.GetMetrics()), independent of whatever Recorder backend is
// wired in (spec §4.5).
func (a *Aggregator) GetMetrics() AggregatorMetrics {
	layerStats := a.cache.LayerStats()
	a.recordLayerStats(layerStats)
	return AggregatorMetrics{
		ResolutionsTotal: a.resolutions.Load(),
		CacheHitsTotal:   a.cacheHits.Load(),
		CacheMissesTotal: a.cacheMisses.Load(),
		CacheLayers:      layerStats,
	}
}

// recordLayerStats emits cache.hits_total / cache.evictions_total, labeled
// by layer name, to the wired Recorder. Layer Stats are cumulative snapshots, not
// events, so only the delta since the previous call is pushed through
// IncCounter.
func (a *Aggregator) recordLayerStats(current map[string]cache.Stats) {
	a.cacheStatsMu.Lock()
	defer a.cacheStatsMu.Unlock()
	if a.lastCacheStats == nil {
		a.lastCacheStats = make(map[string]cache.Stats, len(current))
	}
	for layer, stats := range current {
		prev := a.lastCacheStats[layer]
		for i := int64(0); i < stats.Hits-prev.Hits; i++ {
			a.metrics.IncCounter(metrics.MetricCacheLayerHits, map[string]string{"layer": layer})
		}
		for i := int64(0); i < stats.Evictions-prev.Evictions; i++ {
			a.metrics.IncCounter(metrics.MetricCacheLayerEvictions, map[string]string{"layer": layer})
		}
		a.lastCacheStats[layer] = stats
	}
}
