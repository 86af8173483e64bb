// Package registry implements the Contributor Registry (spec §4.1): the
// priority-ordered set of plugin contributors a resolve fans out to.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/actorcore/engine/pkg/statcore"
)

// Contributor is the outbound contract every plugin subsystem must satisfy
// (spec §6). Implementations must not mutate the actor and must be
// idempotent for a given (actor, version, context).
type Contributor interface {
	SystemID() string
	Priority() int64
	Contribute(ctx context.Context, actor *statcore.Actor, rctx map[string]any) (statcore.SubsystemOutput, error)
}

// Predicate, when non-nil, restricts a contributor to actors it accepts.
// Predicates are pure functions of the actor — they never see registry
// state, which is how the core avoids the cyclic-reference trap described
// in spec §9's design notes.
type Predicate func(actor *statcore.Actor) bool

// PredicateContributor is implemented by contributors that want to opt out
// of some actors entirely, rather than returning an empty SubsystemOutput.
type PredicateContributor interface {
	Contributor
	Applies(actor *statcore.Actor) bool
}

type entry struct {
	contributor Contributor
}

// Event describes a registry mutation, delivered to subscribers (spec_full
// §11.1).
type Event struct {
	Kind     EventKind
	SystemID string
}

// EventKind enumerates the registry mutations that generate an Event.
type EventKind string

const (
	EventRegistered   EventKind = "registered"
	EventUnregistered EventKind = "unregistered"
)

// Registry holds the set of registered contributors, indexed by id, and
// serves priority-ordered and per-actor views of them.
//
// Concurrency: registries are reader-heavy. Readers never block each other;
// writers (Register/Unregister) take the write lock briefly. A resolve
// snapshots the priority-ordered slice once at fan-out time so in-flight
// work is unaffected by concurrent registrations, mirroring how the
// teacher's queue.WorkerPool snapshots its active-session set before acting
// on it rather than holding a lock across the whole operation.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]entry
	epoch   int64 // bumped on every register/unregister; feeds the cache key
	subs    []func(Event)

	forActorCache *actorCache
}

// New creates an empty registry. maxActorCacheEntries bounds the
// contributors_for(actor) FIFO cache (spec §4.1); 0 disables caching.
func New(maxActorCacheEntries int) *Registry {
	return &Registry{
		byID:          make(map[string]entry),
		forActorCache: newActorCache(maxActorCacheEntries),
	}
}

// Subscribe registers fn to be called synchronously on every Register or
// Unregister, so collaborators (e.g. the aggregator) can react without
// polling (spec_full §11.1). The registry itself does not subscribe:
// Register and Unregister clear the per-actor cache and bump the epoch
// directly.
func (r *Registry) Subscribe(fn func(Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, fn)
}

func (r *Registry) notify(ev Event) {
	for _, fn := range r.subs {
		fn(ev)
	}
}

// Register adds a contributor. Returns statcore.ErrInvalidID for an empty
// system id, statcore.ErrDuplicateID if already present.
func (r *Registry) Register(c Contributor) error {
	if c == nil || c.SystemID() == "" {
		return statcore.ErrInvalidID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[c.SystemID()]; ok {
		return statcore.ErrDuplicateID
	}
	r.byID[c.SystemID()] = entry{contributor: c}
	r.epoch++
	r.forActorCache.clear()
	r.notify(Event{Kind: EventRegistered, SystemID: c.SystemID()})
	return nil
}

// Unregister removes a contributor by id. Returns statcore.ErrNotFound if
// absent.
func (r *Registry) Unregister(systemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[systemID]; !ok {
		return statcore.ErrNotFound
	}
	delete(r.byID, systemID)
	r.epoch++
	r.forActorCache.clear()
	r.notify(Event{Kind: EventUnregistered, SystemID: systemID})
	return nil
}

// GetByID returns the contributor registered under systemID, if any.
func (r *Registry) GetByID(systemID string) (Contributor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[systemID]
	if !ok {
		return nil, false
	}
	return e.contributor, true
}

// Epoch returns the current registration epoch, bumped on every
// Register/Unregister. The aggregator folds this into its cache key (spec
// §4.5 step 1) so a global cache flush is unnecessary on every register.
func (r *Registry) Epoch() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.epoch
}

// GetByPriority returns contributors in descending priority order, ties
// broken by ascending system id for determinism (spec §4.1).
func (r *Registry) GetByPriority() []Contributor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked()
}

func (r *Registry) sortedLocked() []Contributor {
	out := make([]Contributor, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, e.contributor)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].Priority(), out[j].Priority()
		if pi != pj {
			return pi > pj
		}
		return out[i].SystemID() < out[j].SystemID()
	})
	return out
}

// ContributorsFor returns the priority-ordered contributors applicable to
// actor: all registered contributors whose predicate (if any) accepts the
// actor. Results are cached per (actor.ID, actor.Version) with a bounded
// FIFO; entries are dropped on any Register/Unregister via the epoch bump
// above.
func (r *Registry) ContributorsFor(actor *statcore.Actor) []Contributor {
	key := actorCacheKey{id: actor.ID, version: actor.Version, epoch: r.Epoch()}
	if cached, ok := r.forActorCache.get(key); ok {
		return cached
	}

	r.mu.RLock()
	sorted := r.sortedLocked()
	r.mu.RUnlock()

	out := make([]Contributor, 0, len(sorted))
	for _, c := range sorted {
		if pc, ok := c.(PredicateContributor); ok {
			if !pc.Applies(actor) {
				continue
			}
		}
		out = append(out, c)
	}
	r.forActorCache.set(key, out)
	return out
}
