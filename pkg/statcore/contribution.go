package statcore

import "math"

// Contribution is a single directional stat modification produced by one
// contributor for one dimension.
type Contribution struct {
	Dimension string
	Bucket    Bucket
	Value     float64
	System    string
	Priority  *int64 // nil is treated as 0 throughout ordering and Override
	Tags      []string
}

// PriorityOrZero returns the contribution's priority, defaulting to 0 when
// unset, per spec §4.4 step 3.
func (c Contribution) PriorityOrZero() int64 {
	if c.Priority == nil {
		return 0
	}
	return *c.Priority
}

// Valid reports whether the contribution satisfies the invariants in spec
// §3: a finite value, a non-empty dimension, and a non-empty system.
func (c Contribution) Valid() bool {
	return c.Dimension != "" && c.System != "" && !math.IsNaN(c.Value) && !math.IsInf(c.Value, 0)
}

// CapMode controls how a CapContribution's value combines with the running
// bound for a dimension within a single layer.
type CapMode string

const (
	CapModeBaseline CapMode = "baseline"
	CapModeAdditive CapMode = "additive"
	CapModeHardMin  CapMode = "hard_min"
	CapModeHardMax  CapMode = "hard_max"
	CapModeOverride CapMode = "override"
)

// CapKind identifies which bound (min or max) a CapContribution targets.
type CapKind string

const (
	CapKindMin CapKind = "min"
	CapKindMax CapKind = "max"
)

// CapContribution is a proposed bound on a dimension from one contributor,
// scoped to one cap layer.
type CapContribution struct {
	Dimension string
	Mode      CapMode
	Kind      CapKind
	Value     float64
	Layer     string
	System    string
	Priority  int64
}

// Valid reports whether the cap contribution satisfies spec §3's invariants
// (finite value; layer/system populated elsewhere by the registry lookup).
func (c CapContribution) Valid() bool {
	return c.Dimension != "" && c.Layer != "" && !math.IsNaN(c.Value) && !math.IsInf(c.Value, 0)
}

// SubsystemOutput is one contributor's complete emission for one actor.
type SubsystemOutput struct {
	SystemID string
	Primary  []Contribution
	Derived  []Contribution
	Caps     []CapContribution
	Metadata map[string]any
}
