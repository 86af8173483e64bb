package statcore

import "time"

// SkippedSubsystem names a contributor whose output was dropped during a
// resolve, and why — spec §7's "partial-failure resolve" contract.
type SkippedSubsystem struct {
	SystemID string
	Reason   string
}

// Snapshot is the immutable result of a resolve for one (actor.ID,
// actor.Version). It is never mutated after assembly.
type Snapshot struct {
	ActorID             string
	Version             int64
	Primary             map[string]float64
	Derived             map[string]float64
	CapsUsed            map[string]Caps
	SubsystemsProcessed []string
	CreatedAt           time.Time
	CacheHit            bool

	// Partial-failure diagnostics (spec §7).
	Partial            bool
	SkippedSubsystems  []SkippedSubsystem
	CapInconsistencies []CapInconsistency
	NumericOverflows   []string // dimensions that hit non-finite intermediates

	// DroppedContributions counts contributions dropped before merge because
	// Contribution.Valid()/CapContribution.Valid() rejected a NaN or ±Inf
	// value (spec §4.4: "dropped and counted as an error").
	DroppedContributions int

	// StaleOnWrite is set when actor.Version advanced during gather/assembly
	// (spec §4.5 step 7); the snapshot is still returned but cached only
	// under its original version key.
	StaleOnWrite bool

	Metadata map[string]any
}

// NewSnapshot builds an empty snapshot for actorID/version, ready to be
// populated by the aggregator.
func NewSnapshot(actorID string, version int64) *Snapshot {
	return &Snapshot{
		ActorID:             actorID,
		Version:             version,
		Primary:             make(map[string]float64),
		Derived:             make(map[string]float64),
		CapsUsed:            make(map[string]Caps),
		SubsystemsProcessed: nil,
		CreatedAt:           time.Now(),
		Metadata:            make(map[string]any),
	}
}
