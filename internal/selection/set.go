// Package selection tracks which VMs the operator marked for export.
package selection

import (
	"slices"
	"strings"
	"sync"
)

// Set is a set of VM names. Membership does not depend on the inventory
// filter: a selected VM stays selected while it is filtered out of view.
type Set struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

// NewSet creates an empty selection.
func NewSet() *Set {
	return &Set{names: make(map[string]struct{})}
}

// Toggle marks or unmarks one VM. Blank names are ignored.
func (s *Set) Toggle(name string, selected bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if selected {
		s.names[name] = struct{}{}
	} else {
		delete(s.names, name)
	}
}

// SelectAll adds every given name to the selection.
func (s *Set) SelectAll(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			s.names[name] = struct{}{}
		}
	}
}

// ClearAll empties the selection.
func (s *Set) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.names)
}

// Has reports whether name is selected.
func (s *Set) Has(name string) bool {
	name = strings.TrimSpace(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.names[name]
	return ok
}

// Count returns the number of selected VMs.
func (s *Set) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.names)
}

// Eligible reports whether the selection can be exported.
func (s *Set) Eligible() bool {
	return s.Count() > 0
}

// Names returns the selected names in sorted order.
func (s *Set) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.names))
	for name := range s.names {
		names = append(names, name)
	}
	s.mu.RUnlock()

	slices.Sort(names)
	return names
}
