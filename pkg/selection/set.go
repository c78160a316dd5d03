// Package selection tracks checkbox style selections against the selection
// captured when a form was opened, and reports what to grant and revoke.
//
// Set is the flat variant, Tree derives tri-state parent checkboxes from
// leaf selection, and Matrix selects permission cells by row and column.
// None of the types are safe for concurrent mutation.
package selection

import (
	"cmp"
	"maps"
	"slices"
)

// Diff is the difference between the current and the initial selection.
// Add and Remove are sorted and disjoint.
type Diff[K comparable] struct {
	Add    []K `json:"add,omitempty" yaml:"add,omitempty"`
	Remove []K `json:"remove,omitempty" yaml:"remove,omitempty"`
}

// IsEmpty returns true if nothing was added or removed.
func (d Diff[K]) IsEmpty() bool {
	return len(d.Add) == 0 && len(d.Remove) == 0
}

// Set is a selection of ids compared against an initial selection.
type Set[K comparable] struct {
	compare  func(a, b K) int
	initial  map[K]struct{}
	selected map[K]struct{}
}

// New creates a set whose initial and current selection are initial.
func New[K cmp.Ordered](initial []K) *Set[K] {
	return NewFunc(initial, cmp.Compare[K])
}

// NewFunc is like New for keys without a natural order. compare fixes the
// order of Selected and Diff.
func NewFunc[K comparable](initial []K, compare func(a, b K) int) *Set[K] {
	s := &Set[K]{compare: compare}
	s.Rebase(initial)
	return s
}

func toSet[K comparable](ids []K) map[K]struct{} {
	m := make(map[K]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

// Toggle flips the membership of id and returns the new membership.
func (s *Set[K]) Toggle(id K) bool {
	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
		return false
	}
	s.selected[id] = struct{}{}
	return true
}

// SetMany selects or deselects every id. Repeating a call with the same
// arguments has no further effect.
func (s *Set[K]) SetMany(ids []K, selected bool) {
	for _, id := range ids {
		if selected {
			s.selected[id] = struct{}{}
		} else {
			delete(s.selected, id)
		}
	}
}

// IsSelected reports whether id is currently selected.
func (s *Set[K]) IsSelected(id K) bool {
	_, ok := s.selected[id]
	return ok
}

// CountSelected returns how many of ids are selected.
func (s *Set[K]) CountSelected(ids []K) int {
	n := 0
	for _, id := range ids {
		if s.IsSelected(id) {
			n++
		}
	}
	return n
}

// Len returns the number of selected ids.
func (s *Set[K]) Len() int {
	return len(s.selected)
}

// Selected returns the current selection, sorted.
func (s *Set[K]) Selected() []K {
	return s.sorted(s.selected)
}

// Initial returns the initial selection, sorted.
func (s *Set[K]) Initial() []K {
	return s.sorted(s.initial)
}

// Diff returns the ids selected since the initial selection (Add) and the
// initially selected ids no longer selected (Remove).
func (s *Set[K]) Diff() Diff[K] {
	var d Diff[K]
	for id := range s.selected {
		if _, ok := s.initial[id]; !ok {
			d.Add = append(d.Add, id)
		}
	}
	for id := range s.initial {
		if _, ok := s.selected[id]; !ok {
			d.Remove = append(d.Remove, id)
		}
	}
	slices.SortFunc(d.Add, s.compare)
	slices.SortFunc(d.Remove, s.compare)
	return d
}

// IsDirty reports whether the selection differs from the initial one.
func (s *Set[K]) IsDirty() bool {
	if len(s.selected) != len(s.initial) {
		return true
	}
	for id := range s.initial {
		if _, ok := s.selected[id]; !ok {
			return true
		}
	}
	return false
}

// Reset restores the initial selection.
func (s *Set[K]) Reset() {
	s.selected = maps.Clone(s.initial)
}

// Rebase makes initial both the initial and the current selection, as after
// a successful save.
func (s *Set[K]) Rebase(initial []K) {
	s.initial = toSet(initial)
	s.selected = toSet(initial)
}

func (s *Set[K]) sorted(m map[K]struct{}) []K {
	ids := slices.Collect(maps.Keys(m))
	slices.SortFunc(ids, s.compare)
	return ids
}
