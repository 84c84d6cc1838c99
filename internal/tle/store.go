package tle

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Store provides thread-safe access to the current catalog of every group.
// Each group has its own atomic slot, so readers always see a complete
// snapshot and a swap in one group never blocks readers of another.
type Store struct {
	mu    sync.RWMutex // guards the slot map, not the snapshots
	slots map[string]*atomic.Pointer[Catalog]
}

// NewStore creates a Store with an empty slot for each named group.
func NewStore(groups ...string) *Store {
	s := &Store{slots: make(map[string]*atomic.Pointer[Catalog], len(groups))}
	for _, g := range groups {
		s.slots[g] = new(atomic.Pointer[Catalog])
	}
	return s
}

// Get returns the current snapshot for group, or nil if none has been loaded.
func (s *Store) Get(group string) *Catalog {
	s.mu.RLock()
	slot := s.slots[group]
	s.mu.RUnlock()
	if slot == nil {
		return nil
	}
	return slot.Load()
}

// Swap atomically replaces the snapshot for cat.Group and returns the previous one.
func (s *Store) Swap(cat *Catalog) *Catalog {
	s.mu.RLock()
	slot := s.slots[cat.Group]
	s.mu.RUnlock()

	if slot == nil {
		s.mu.Lock()
		if slot = s.slots[cat.Group]; slot == nil {
			slot = new(atomic.Pointer[Catalog])
			s.slots[cat.Group] = slot
		}
		s.mu.Unlock()
	}
	return slot.Swap(cat)
}

// Groups returns the known group names in sorted order.
func (s *Store) Groups() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.slots))
	for g := range s.slots {
		out = append(out, g)
	}
	slices.Sort(out)
	return out
}

// LoadedGroups returns the sorted names of the groups that have a snapshot.
func (s *Store) LoadedGroups() []string {
	var out []string
	for _, g := range s.Groups() {
		if s.Get(g) != nil {
			out = append(out, g)
		}
	}
	return out
}
