package caplayer

import (
	"sort"

	"github.com/actorcore/engine/pkg/statcore"
)

// Inconsistency mirrors statcore.CapInconsistency; kept as a local alias so
// callers that only import caplayer don't need statcore for this one type.
type Inconsistency = statcore.CapInconsistency

// EffectiveCaps computes the effective Caps per dimension from every
// gathered CapContribution, following spec §4.3. This is a pure,
// synchronous function — no suspension point, same discipline as the
// Bucket Processor (spec §9).
//
// Returns the resolved caps (omitting any dimension left inconsistent) and
// the list of inconsistencies recorded for snapshot metadata.
func (r *Registry) EffectiveCaps(contributions []statcore.CapContribution) (map[string]statcore.Caps, []Inconsistency) {
	r.mu.RLock()
	order := append([]string(nil), r.order...)
	policy := r.policy
	r.mu.RUnlock()

	byDimension := make(map[string][]statcore.CapContribution)
	for _, c := range contributions {
		byDimension[c.Dimension] = append(byDimension[c.Dimension], c)
	}

	result := make(map[string]statcore.Caps, len(byDimension))
	var inconsistencies []Inconsistency

	for dim, contribs := range byDimension {
		perLayer := make(map[string]statcore.Caps, len(order))
		perLayerPinned := make(map[string]pinnedBounds, len(order))
		byLayer := make(map[string][]statcore.CapContribution)
		for _, c := range contribs {
			byLayer[c.Layer] = append(byLayer[c.Layer], c)
		}

		for _, layer := range order {
			group := byLayer[layer]
			if len(group) == 0 {
				continue
			}
			sort.SliceStable(group, func(i, j int) bool {
				if group[i].Priority != group[j].Priority {
					return group[i].Priority < group[j].Priority
				}
				return group[i].System < group[j].System
			})
			caps := statcore.UnboundedCaps()
			var pinned pinnedBounds
			for _, c := range group {
				caps, pinned = applyCapContribution(caps, c, pinned)
			}
			if !caps.Consistent() {
				inconsistencies = append(inconsistencies, Inconsistency{Dimension: dim, Layers: []string{layer}})
				continue // layer result is inconsistent — excluded from cross-layer combination
			}
			perLayer[layer] = caps
			perLayerPinned[layer] = pinned
		}

		if len(perLayer) == 0 {
			// No registered layer produced a consistent result: nothing to
			// combine, and any per-layer inconsistency is already recorded.
			continue
		}
		combined, ok := combineAcrossLayers(order, perLayer, perLayerPinned, policy)
		if !ok {
			inconsistencies = append(inconsistencies, Inconsistency{Dimension: dim, Layers: order})
			continue
		}
		result[dim] = combined
	}

	return result, inconsistencies
}

// pinnedBounds tracks, per layer, whether Baseline/Override set min and/or
// max — the bound PrioritizedOverride cross-layer combination needs to know
// "wins for the remainder" (spec §4.3).
type pinnedBounds struct {
	min, max bool
}

// applyCapContribution folds one cap contribution into the running caps for
// a layer, per spec §4.3 step 3. Baseline and Override both pin the bound
// they touch; repeated Baselines within a layer apply in sort order with
// the last one winning (spec §9 Open Question).
func applyCapContribution(caps statcore.Caps, c statcore.CapContribution, pinned pinnedBounds) (statcore.Caps, pinnedBounds) {
	switch c.Mode {
	case statcore.CapModeBaseline, statcore.CapModeOverride:
		if c.Kind == statcore.CapKindMin {
			caps.Min = c.Value
			pinned.min = true
		} else {
			caps.Max = c.Value
			pinned.max = true
		}
	case statcore.CapModeAdditive:
		if c.Kind == statcore.CapKindMin {
			caps.Min += c.Value
		} else {
			caps.Max += c.Value
		}
	case statcore.CapModeHardMin:
		caps.Min = max(caps.Min, c.Value)
	case statcore.CapModeHardMax:
		caps.Max = min(caps.Max, c.Value)
	}
	return caps, pinned
}

// combineAcrossLayers implements spec §4.3's cross-layer combination for
// Intersect / Union / PrioritizedOverride.
func combineAcrossLayers(order []string, perLayer map[string]statcore.Caps, pinned map[string]pinnedBounds, policy statcore.AcrossLayerPolicy) (statcore.Caps, bool) {
	present := make([]string, 0, len(order))
	for _, l := range order {
		if _, ok := perLayer[l]; ok {
			present = append(present, l)
		}
	}
	if len(present) == 0 {
		return statcore.Caps{}, false
	}

	switch policy {
	case statcore.PolicyUnion:
		out := perLayer[present[0]]
		for _, l := range present[1:] {
			out = statcore.Union(out, perLayer[l])
		}
		return out, true

	case statcore.PolicyPrioritizedOverride:
		out := statcore.UnboundedCaps()
		minPinned, maxPinned := false, false
		for _, l := range present {
			c := perLayer[l]
			p := pinned[l]
			if !minPinned {
				out.Min = c.Min
				if p.min {
					minPinned = true
				}
			}
			if !maxPinned {
				out.Max = c.Max
				if p.max {
					maxPinned = true
				}
			}
		}
		if !out.Consistent() {
			return statcore.Caps{}, false
		}
		return out, true

	default: // Intersect, the documented default
		// A cross-layer conflict drops the cap entirely for
		// this dimension rather than keeping a partial prefix — the
		// concrete scenario (min > max from two HardMin/HardMax layers)
		// leaves the dimension uncapped, not capped by whichever layers
		// happened to combine cleanly first.
		out := perLayer[present[0]]
		if !out.Consistent() {
			return statcore.Caps{}, false
		}
		for _, l := range present[1:] {
			candidate := statcore.Intersect(out, perLayer[l])
			if !candidate.Consistent() {
				return statcore.Caps{}, false
			}
			out = candidate
		}
		return out, true
	}
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
