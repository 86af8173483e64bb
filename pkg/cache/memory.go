package cache

import (
	"container/list"
	"context"
	"math/rand"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryLayer is the L1 cache: an in-process map with configurable eviction
// (spec §4.6). LRU delegates to hashicorp/golang-lru/v2, the native fit;
// LFU/FIFO/Random/TTL have no equivalent in that package (it only implements
// LRU, 2Q and ARC) so they're hand-rolled behind the same Layer interface —
// see DESIGN.md for why no pack library covers them.
type MemoryLayer struct {
	policy EvictionPolicy
	cap    int

	mu        sync.Mutex
	lru       *lru.Cache[string, memEntry]
	generic   map[string]*list.Element // FIFO/Random order ring, list.Element.Value is *memEntryNode
	order     *list.List
	freq      map[string]int64 // LFU only
	stats     Stats
}

type memEntry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

type memEntryNode struct {
	key   string
	entry memEntry
}

// NewMemoryLayer creates an L1 layer holding at most capacity entries under
// the given eviction policy.
func NewMemoryLayer(capacity int, policy EvictionPolicy) *MemoryLayer {
	m := &MemoryLayer{policy: policy, cap: capacity}
	switch policy {
	case EvictionLRU, "":
		m.policy = EvictionLRU
		c, _ := lru.New[string, memEntry](capacity)
		m.lru = c
	default:
		m.generic = make(map[string]*list.Element, capacity)
		m.order = list.New()
		m.freq = make(map[string]int64)
	}
	return m
}

func (m *MemoryLayer) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.lookupLocked(key)
	if !ok {
		m.stats.Misses++
		return nil, false, nil
	}
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		m.deleteLocked(key)
		m.stats.Misses++
		return nil, false, nil
	}
	m.touchLocked(key)
	m.stats.Hits++
	return entry.value, true, nil
}

func (m *MemoryLayer) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	entry := memEntry{value: value, expires: time.Now().Add(ttl)}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.policy == EvictionLRU {
		evicted := m.lru.Add(key, entry)
		if evicted {
			m.stats.Evictions++
		}
		return nil
	}

	if el, ok := m.generic[key]; ok {
		el.Value.(*memEntryNode).entry = entry
		m.touchLocked(key)
		return nil
	}
	if m.cap > 0 && len(m.generic) >= m.cap {
		m.evictOneLocked()
	}
	node := &memEntryNode{key: key, entry: entry}
	var el *list.Element
	if m.policy == EvictionFIFO || m.policy == EvictionLFU || m.policy == EvictionTTL {
		el = m.order.PushBack(node)
	} else {
		el = m.order.PushBack(node) // Random: position doesn't matter, eviction picks randomly
	}
	m.generic[key] = el
	m.freq[key] = 0
	return nil
}

func (m *MemoryLayer) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(key)
	return nil
}

func (m *MemoryLayer) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.policy == EvictionLRU {
		m.lru.Purge()
		return nil
	}
	m.generic = make(map[string]*list.Element, m.cap)
	m.order = list.New()
	m.freq = make(map[string]int64)
	return nil
}

func (m *MemoryLayer) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	if m.policy == EvictionLRU {
		s.Entries = int64(m.lru.Len())
	} else {
		s.Entries = int64(len(m.generic))
	}
	return s
}

func (m *MemoryLayer) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	if m.policy == EvictionLRU {
		for _, k := range m.lru.Keys() {
			if hasPrefix(k, prefix) {
				out = append(out, k)
			}
		}
		return out, nil
	}
	for k := range m.generic {
		if hasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *MemoryLayer) lookupLocked(key string) (memEntry, bool) {
	if m.policy == EvictionLRU {
		return m.lru.Get(key)
	}
	el, ok := m.generic[key]
	if !ok {
		return memEntry{}, false
	}
	return el.Value.(*memEntryNode).entry, true
}

func (m *MemoryLayer) touchLocked(key string) {
	switch m.policy {
	case EvictionLFU:
		m.freq[key]++
	case EvictionLRU, EvictionFIFO, EvictionTTL, EvictionRandom:
		// position/recency already tracked by the backing structure (LRU)
		// or irrelevant to the policy (FIFO/TTL/Random evict independent of
		// access order).
	}
}

func (m *MemoryLayer) deleteLocked(key string) {
	if m.policy == EvictionLRU {
		m.lru.Remove(key)
		return
	}
	if el, ok := m.generic[key]; ok {
		m.order.Remove(el)
		delete(m.generic, key)
		delete(m.freq, key)
	}
}

// evictOneLocked drops one entry under the active non-LRU policy.
func (m *MemoryLayer) evictOneLocked() {
	switch m.policy {
	case EvictionFIFO:
		front := m.order.Front()
		if front == nil {
			return
		}
		key := front.Value.(*memEntryNode).key
		m.deleteLocked(key)
	case EvictionTTL:
		var oldestKey string
		var oldest time.Time
		for k, el := range m.generic {
			exp := el.Value.(*memEntryNode).entry.expires
			if oldestKey == "" || exp.Before(oldest) {
				oldestKey, oldest = k, exp
			}
		}
		if oldestKey != "" {
			m.deleteLocked(oldestKey)
		}
	case EvictionLFU:
		var leastKey string
		var least int64 = -1
		for k, f := range m.freq {
			if least == -1 || f < least {
				leastKey, least = k, f
			}
		}
		if leastKey != "" {
			m.deleteLocked(leastKey)
		}
	case EvictionRandom:
		i := rand.Intn(len(m.generic))
		var victim string
		for k := range m.generic {
			if i == 0 {
				victim = k
				break
			}
			i--
		}
		m.deleteLocked(victim)
	}
	m.stats.Evictions++
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
