// Package pipeline implements the Bucket Processor (spec §4.4): the
// synchronous, deterministic numeric core that turns a dimension's
// contributions into a single final value.
//
// This package is fully synchronous by design (spec §9's "async-to-sync
// bridging" design note) — no suspension point exists anywhere in it, which
// keeps the hot numeric core testable without any task runtime.
package pipeline

import (
	"math"
	"sort"

	"github.com/actorcore/engine/pkg/statcore"
)

// Config gates the optional buckets (spec §4.4 step 2). Nothing rejects a
// contribution that uses a bucket not enabled here; the processor skips a
// disabled extra bucket's contributions as if they were never gathered.
type Config struct {
	EnableExponential bool
	EnableLogarithmic bool
	EnableConditional bool
}

// Result is the outcome of processing one dimension's contributions.
type Result struct {
	Value           float64
	Omitted         bool // true when there was no initial value and no contributions
	DroppedNaN      int  // contributions dropped for a NaN value
	NumericOverflow bool // the running value went non-finite mid-pipeline
}

// Process implements spec §4.4 steps 1-5. initialValue is the dimension's
// starting value (0 for a fresh dimension; non-zero when combining with an
// externally supplied baseline). clampCaps, if non-nil, is applied last.
func Process(cfg Config, contributions []statcore.Contribution, hasInitial bool, initialValue float64, clampCaps *statcore.Caps) Result {
	clean := make([]statcore.Contribution, 0, len(contributions))
	dropped := 0
	for _, c := range contributions {
		if math.IsNaN(c.Value) {
			dropped++
			continue
		}
		clean = append(clean, c)
	}

	if !hasInitial && len(clean) == 0 {
		return Result{Omitted: true, DroppedNaN: dropped}
	}

	byBucket := make(map[statcore.Bucket][]statcore.Contribution)
	for _, c := range clean {
		byBucket[c.Bucket] = append(byBucket[c.Bucket], c)
	}

	order := append(append([]statcore.Bucket{}, statcore.CoreBucketOrder...), extraOrder(cfg)...)

	value := initialValue
	overflowed := false
	for _, bucket := range order {
		group, ok := byBucket[bucket]
		if !ok || len(group) == 0 {
			continue
		}
		sortDeterministic(group)
		next := applyBucket(value, bucket, group)
		if math.IsInf(next, 0) || math.IsNaN(next) {
			overflowed = true
			break
		}
		value = next
	}

	if clampCaps != nil {
		value = clampCaps.Clamp(value)
	}

	return Result{Value: value, DroppedNaN: dropped, NumericOverflow: overflowed}
}

func extraOrder(cfg Config) []statcore.Bucket {
	var out []statcore.Bucket
	if cfg.EnableExponential {
		out = append(out, statcore.BucketExponential)
	}
	if cfg.EnableLogarithmic {
		out = append(out, statcore.BucketLogarithmic)
	}
	if cfg.EnableConditional {
		out = append(out, statcore.BucketConditional)
	}
	return out
}

// sortDeterministic sorts in place by priority descending, system id
// ascending, value ascending — spec §4.4 step 3. This order is the sole
// source of determinism for Override and ties; it never depends on input
// order or goroutine scheduling.
func sortDeterministic(group []statcore.Contribution) {
	sort.SliceStable(group, func(i, j int) bool {
		pi, pj := group[i].PriorityOrZero(), group[j].PriorityOrZero()
		if pi != pj {
			return pi > pj
		}
		if group[i].System != group[j].System {
			return group[i].System < group[j].System
		}
		return group[i].Value < group[j].Value
	})
}

// applyBucket implements the per-bucket semantics of spec §4.4 step 4. The
// three feature-gated buckets (Exponential, Logarithmic, Conditional) are
// additive transforms applied after Override, matching the pipeline's
// "processed last" placement; their exact curve/condition evaluation is a
// plugin-domain concern (e.g. the condition DSL, explicitly out of scope),
// so here they fold in as a flat sum like PostAdd once enabled.
func applyBucket(value float64, bucket statcore.Bucket, group []statcore.Contribution) float64 {
	switch bucket {
	case statcore.BucketFlat, statcore.BucketPostAdd:
		for _, c := range group {
			value += c.Value
		}
		return value
	case statcore.BucketMult:
		for _, c := range group {
			value *= c.Value
		}
		return value
	case statcore.BucketOverride:
		return group[len(group)-1].Value
	case statcore.BucketExponential, statcore.BucketLogarithmic, statcore.BucketConditional:
		for _, c := range group {
			value += c.Value
		}
		return value
	default:
		return value
	}
}
