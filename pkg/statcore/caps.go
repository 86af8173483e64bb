package statcore

import "math"

// Caps is a resolved (min, max) bound for one dimension.
type Caps struct {
	Min float64
	Max float64
}

// UnboundedCaps is the identity element for per-layer reduction: spec §4.3
// step 1, "start with (min = -inf, max = +inf)".
func UnboundedCaps() Caps {
	return Caps{Min: math.Inf(-1), Max: math.Inf(1)}
}

// Consistent reports whether min <= max.
func (c Caps) Consistent() bool {
	return c.Min <= c.Max
}

// Clamp restricts v into [c.Min, c.Max].
func (c Caps) Clamp(v float64) float64 {
	if v < c.Min {
		return c.Min
	}
	if v > c.Max {
		return c.Max
	}
	return v
}

// Intersect combines two Caps as (max(min), min(max)) — spec §3.
func Intersect(a, b Caps) Caps {
	return Caps{Min: math.Max(a.Min, b.Min), Max: math.Min(a.Max, b.Max)}
}

// Union combines two Caps as (min(min), max(max)) — spec §3.
func Union(a, b Caps) Caps {
	return Caps{Min: math.Min(a.Min, b.Min), Max: math.Max(a.Max, b.Max)}
}

// AcrossLayerPolicy picks how per-layer Caps combine across the cap layer
// order.
type AcrossLayerPolicy string

const (
	PolicyIntersect           AcrossLayerPolicy = "intersect"
	PolicyUnion               AcrossLayerPolicy = "union"
	PolicyPrioritizedOverride AcrossLayerPolicy = "prioritized_override"
)

// CapInconsistency records a layer or cross-layer combination that yielded
// min > max; the dimension is left uncapped for that resolve (spec §7).
type CapInconsistency struct {
	Dimension string
	Layers    []string
}
