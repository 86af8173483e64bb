// Package combiner implements the Combiner Registry (spec §4.2): the map
// from dimension to merge rule, plus the simple (non-pipeline) merge
// semantics.
package combiner

import (
	"sort"
	"sync"

	"github.com/actorcore/engine/pkg/statcore"
)

// Registry maps dimensions to MergeRules, falling back to
// statcore.DefaultMergeRule for anything not explicitly configured.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]statcore.MergeRule
}

// New creates an empty combiner registry.
func New() *Registry {
	return &Registry{rules: make(map[string]statcore.MergeRule)}
}

// SetRule registers (or replaces) the merge rule for a dimension.
func (r *Registry) SetRule(dimension string, rule statcore.MergeRule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[dimension] = rule
}

// GetRule returns the configured rule for dimension, or the default rule if
// none was registered.
func (r *Registry) GetRule(dimension string) statcore.MergeRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rule, ok := r.rules[dimension]; ok {
		return rule
	}
	return statcore.DefaultMergeRule()
}

// ApplySimple computes the merged numeric value for contributions under a
// non-pipeline MergeRule (spec §4.2). rule.UsePipeline is the Bucket
// Processor's concern, not this function's — callers must route pipeline
// rules there. OperatorConcat is a string-valued rule (see ApplyConcat); it
// isn't a numeric operator this function knows how to apply, so it falls
// into the same "no value" case as any other unrecognized operator.
//
// Returns (value, ok): ok is false when the dimension must be omitted from
// the snapshot (no contributions, OperatorConcat, or an unrecognized
// operator — mirrors the Bucket Processor's "empty input → omit the
// dimension" edge case).
func ApplySimple(rule statcore.MergeRule, contributions []statcore.Contribution) (float64, bool) {
	if len(contributions) == 0 {
		return 0, false
	}
	switch rule.Operator {
	case statcore.OperatorSum:
		var sum float64
		for _, c := range contributions {
			sum += c.Value
		}
		return sum, true
	case statcore.OperatorMax:
		m := contributions[0].Value
		for _, c := range contributions[1:] {
			if c.Value > m {
				m = c.Value
			}
		}
		return m, true
	case statcore.OperatorMin:
		m := contributions[0].Value
		for _, c := range contributions[1:] {
			if c.Value < m {
				m = c.Value
			}
		}
		return m, true
	case statcore.OperatorAverage:
		// Open Question resolved (spec §9): empty Average omits the
		// dimension rather than returning 0 — already covered by the
		// len==0 guard above since we never reach here with zero
		// contributions.
		var sum float64
		for _, c := range contributions {
			sum += c.Value
		}
		return sum / float64(len(contributions)), true
	case statcore.OperatorMultiply:
		product := 1.0
		for _, c := range contributions {
			product *= c.Value
		}
		return product, true
	case statcore.OperatorOverride:
		return overrideWinner(contributions).Value, true
	default:
		return 0, false
	}
}

// overrideWinner picks the single highest-priority contribution, ties broken
// by system id — among equal priorities the winner is the *largest* system id
// (then the largest value), the same tie-break the Bucket Processor's
// Override applies (spec §4.4 step 4, scenario D).
func overrideWinner(contributions []statcore.Contribution) statcore.Contribution {
	sorted := make([]statcore.Contribution, len(contributions))
	copy(sorted, contributions)
	sort.Slice(sorted, func(i, j int) bool {
		pi, pj := sorted[i].PriorityOrZero(), sorted[j].PriorityOrZero()
		if pi != pj {
			return pi > pj
		}
		if sorted[i].System != sorted[j].System {
			return sorted[i].System < sorted[j].System
		}
		return sorted[i].Value < sorted[j].Value
	})
	// The highest priority sorts first; the winner is the last entry that
	// shares that priority.
	top := sorted[0].PriorityOrZero()
	winner := sorted[0]
	for _, c := range sorted[1:] {
		if c.PriorityOrZero() != top {
			break
		}
		winner = c
	}
	return winner
}

// ApplyConcat implements the Concat operator for string-valued contribution
// content (spec §4.2: "accepted for future content"). Each contribution's
// string is obtained from the caller-supplied stringValue function (the
// numeric Contribution.Value field is out of scope for string content); the
// Open Question on ordering is resolved as priority-descending (spec §9),
// matching Override's tie-break sort so both families share one order.
func ApplyConcat(contributions []statcore.Contribution, stringValue func(statcore.Contribution) string) (string, bool) {
	if len(contributions) == 0 {
		return "", false
	}
	sorted := make([]statcore.Contribution, len(contributions))
	copy(sorted, contributions)
	sort.Slice(sorted, func(i, j int) bool {
		pi, pj := sorted[i].PriorityOrZero(), sorted[j].PriorityOrZero()
		if pi != pj {
			return pi > pj // descending priority
		}
		return sorted[i].System < sorted[j].System
	})
	out := ""
	for _, c := range sorted {
		out += stringValue(c)
	}
	return out, true
}
