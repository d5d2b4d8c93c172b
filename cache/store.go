package cache

import (
	"sync"

	"argus/core"
	"argus/metrics"
)

// Store is a bounded, keyed cache for one data family. Each key maps to an
// ordered item list; keys are evicted oldest-inserted-first once the key
// count exceeds maxKeys. Item slices are treated as immutable: writers
// always install a fresh slice, so a reader never observes a partial write.
type Store[T core.Entity] struct {
	family      core.Family
	maxKeys     int
	maxItems    int  // per-key item cap, 0 = unbounded
	insertFront bool // realtime inserts go to the head (most-recent-first)

	mu      sync.RWMutex
	entries map[string][]T
	order   []string // key insertion order, oldest first
}

// NewStore creates a family store. maxItems and insertFront control the
// realtime upsert behavior for the family (see UpsertRealtime).
func NewStore[T core.Entity](family core.Family, maxKeys, maxItems int, insertFront bool) *Store[T] {
	return &Store[T]{
		family:      family,
		maxKeys:     maxKeys,
		maxItems:    maxItems,
		insertFront: insertFront,
		entries:     make(map[string][]T),
	}
}

// Get returns the cached items for a key, or ok=false on a miss.
func (s *Store[T]) Get(key string) ([]T, bool) {
	s.mu.RLock()
	items, ok := s.entries[key]
	s.mu.RUnlock()

	if ok {
		metrics.CacheHits.WithLabelValues(string(s.family)).Inc()
	} else {
		metrics.CacheMisses.WithLabelValues(string(s.family)).Inc()
	}
	return items, ok
}

// Put installs the item list for a key. A new key takes the newest position
// in the eviction order; rewriting an existing key keeps its position.
func (s *Store[T]) Put(key string, items []T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists {
		s.order = append(s.order, key)
	}
	s.entries[key] = items
	s.evictLocked()
	metrics.CacheKeys.WithLabelValues(string(s.family)).Set(float64(len(s.entries)))
}

// UpsertRealtime applies a streamed item to every cached key whose
// timeframe currently contains the item's timestamp. An id match replaces
// the existing item in place; otherwise the item is inserted at the head
// (insertFront) or appended, and the list is truncated to maxItems.
func (s *Store[T]) UpsertRealtime(item T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, items := range s.entries {
		if !InTimeframe(item.EntityTime(), key) {
			continue
		}
		s.entries[key] = s.applied(items, item)
	}
	metrics.RealtimeUpserts.WithLabelValues(string(s.family)).Inc()
}

func (s *Store[T]) applied(items []T, item T) []T {
	for i := range items {
		if items[i].EntityID() == item.EntityID() {
			updated := append([]T(nil), items...)
			updated[i] = item
			return updated
		}
	}

	var updated []T
	if s.insertFront {
		updated = make([]T, 0, len(items)+1)
		updated = append(updated, item)
		updated = append(updated, items...)
	} else {
		updated = append(append([]T(nil), items...), item)
	}
	if s.maxItems > 0 && len(updated) > s.maxItems {
		updated = updated[:s.maxItems]
	}
	return updated
}

// evictLocked drops oldest-inserted keys until the key count is back under
// the configured bound. Caller must hold the write lock.
func (s *Store[T]) evictLocked() {
	if s.maxKeys <= 0 {
		return
	}
	for len(s.order) > s.maxKeys {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
		metrics.CacheEvictions.WithLabelValues(string(s.family)).Inc()
	}
}

// Len returns the number of distinct cached keys.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Keys returns the cached keys in insertion order.
func (s *Store[T]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Flush drops all cached entries.
func (s *Store[T]) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string][]T)
	s.order = nil
	metrics.CacheKeys.WithLabelValues(string(s.family)).Set(0)
}
