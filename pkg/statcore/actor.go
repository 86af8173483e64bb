// Package statcore defines the data model shared by every component of the
// actor stat aggregation engine: actors, contributions, caps, subsystem
// output, and the snapshot produced by a resolve.
package statcore

import (
	"time"

	"github.com/google/uuid"
)

// Actor is the identity and mutable state that contributors read. The core
// never mutates an Actor; it is owned by the embedder.
type Actor struct {
	ID            string
	Name          string
	Race          string
	Level         int64
	CoreResources [9]float64
	Resources     map[string]float64
	Subsystems    []string
	Attributes    map[string]any
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewActor creates an actor with a generated ID and version 1, mirroring the
// defaults used throughout the spec's scenarios.
func NewActor(name, race string, level int64) *Actor {
	now := time.Now()
	return &Actor{
		ID:         uuid.NewString(),
		Name:       name,
		Race:       race,
		Level:      level,
		Resources:  make(map[string]float64),
		Subsystems: nil,
		Attributes: make(map[string]any),
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Touch bumps the version and updated_at timestamp. Embedders call this on
// every mutation; the core relies on Version strictly increasing to key its
// caches (see pkg/aggregator).
func (a *Actor) Touch() {
	a.Version++
	a.UpdatedAt = time.Now()
}

// Clone returns a deep-enough copy for read-only contributor access: the
// core never hands contributors the embedder's live Actor pointer for
// mutation, only a snapshot of it at fan-out time (see design notes §9 on
// cyclic predicate references).
func (a *Actor) Clone() *Actor {
	c := *a
	c.Resources = make(map[string]float64, len(a.Resources))
	for k, v := range a.Resources {
		c.Resources[k] = v
	}
	c.Subsystems = append([]string(nil), a.Subsystems...)
	c.Attributes = make(map[string]any, len(a.Attributes))
	for k, v := range a.Attributes {
		c.Attributes[k] = v
	}
	return &c
}
