// Package caplayer implements the Cap Layer Registry & Resolver (spec §4.3):
// the ordered list of cap layers, the cross-layer policy, and the pure
// function that turns gathered CapContributions into effective Caps.
package caplayer

import (
	"sync"

	"github.com/actorcore/engine/pkg/statcore"
)

// Registry holds the layer order and the across-layer policy. Layer order
// is pinned at registration: SPEC_FULL §11.2 resolves an Open Question in
// the original by rejecting a reorder of already-pinned layers instead of
// silently reshuffling them.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	index  map[string]int
	policy statcore.AcrossLayerPolicy
}

// New creates a registry with the given initial layer order (ranked from
// first to last) and policy.
func New(layerOrder []string, policy statcore.AcrossLayerPolicy) *Registry {
	r := &Registry{
		index:  make(map[string]int),
		policy: policy,
	}
	for i, name := range layerOrder {
		r.order = append(r.order, name)
		r.index[name] = i
	}
	return r
}

// SetLayerOrder replaces the layer order wholesale. Returns
// statcore.ErrLayerOrderConflict if any already-registered layer would
// change rank relative to another already-registered layer — additions at
// the end, or a full fresh list, are both fine; silently reshuffling pinned
// layers is not (SPEC_FULL §11.2).
func (r *Registry) SetLayerOrder(newOrder []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.order) > 0 {
		newIndex := make(map[string]int, len(newOrder))
		for i, name := range newOrder {
			newIndex[name] = i
		}
		// Check pairwise relative order of every previously known layer.
		for i, a := range r.order {
			for _, b := range r.order[i+1:] {
				ia, oka := newIndex[a]
				ib, okb := newIndex[b]
				if oka && okb && ia > ib {
					return statcore.ErrLayerOrderConflict
				}
			}
		}
	}
	r.order = append([]string(nil), newOrder...)
	r.index = make(map[string]int, len(newOrder))
	for i, name := range newOrder {
		r.index[name] = i
	}
	return nil
}

// SetPolicy replaces the cross-layer policy.
func (r *Registry) SetPolicy(policy statcore.AcrossLayerPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policy = policy
}

// LayerOrder returns a copy of the current layer order.
func (r *Registry) LayerOrder() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Policy returns the current cross-layer policy.
func (r *Registry) Policy() statcore.AcrossLayerPolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.policy
}

// IsRegisteredLayer reports whether name is a known layer.
func (r *Registry) IsRegisteredLayer(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[name]
	return ok
}
