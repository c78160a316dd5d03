package selection

import (
	"cmp"
	"fmt"

	"github.com/agentstation/stagehand/pkg/errors"
)

// State is the derived checkbox state of a node or group.
type State string

const (
	// Unchecked means no leaf below is selected.
	Unchecked State = "unchecked"
	// Indeterminate means some but not all leaves below are selected.
	Indeterminate State = "indeterminate"
	// Checked means every leaf below is selected.
	Checked State = "checked"
)

// stateOf derives a state from a selected count out of total.
func stateOf(selected, total int) State {
	switch {
	case total == 0 || selected == 0:
		return Unchecked
	case selected == total:
		return Checked
	default:
		return Indeterminate
	}
}

// Node is one entry of a selection hierarchy such as
// category, subcategory, item group, item.
type Node[K cmp.Ordered] struct {
	ID K `json:"id" yaml:"id"`
	// Parent is the zero value for root nodes.
	Parent K      `json:"parent,omitempty" yaml:"parent,omitempty"`
	Label  string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Tree is a hierarchical selection. Only leaves are selectable state; the
// state of every other node is computed from the leaves below it on read.
type Tree[K cmp.Ordered] struct {
	nodes    map[K]Node[K]
	roots    []K
	children map[K][]K
	leaves   map[K][]K // leaves below each node, a leaf maps to itself
	set      *Set[K]
}

// NewTree builds a tree from nodes and an initial selection of leaves.
// Node order is kept for Roots and Children. It fails with ErrInvalidInput
// on empty or duplicate ids, unknown parents, cycles, and initial ids that
// are not leaves.
func NewTree[K cmp.Ordered](nodes []Node[K], initial []K) (*Tree[K], error) {
	var zero K
	t := &Tree[K]{
		nodes:    make(map[K]Node[K], len(nodes)),
		children: make(map[K][]K),
		leaves:   make(map[K][]K, len(nodes)),
	}

	for _, n := range nodes {
		if n.ID == zero {
			return nil, errors.NewValidationError("id", n.ID, "node id is empty")
		}
		if _, dup := t.nodes[n.ID]; dup {
			return nil, errors.NewValidationError("id", n.ID, fmt.Sprintf("duplicate node %v", n.ID))
		}
		t.nodes[n.ID] = n
	}

	for _, n := range nodes {
		if n.Parent == zero {
			t.roots = append(t.roots, n.ID)
			continue
		}
		if _, ok := t.nodes[n.Parent]; !ok {
			return nil, errors.NewValidationError("parent", n.Parent, fmt.Sprintf("node %v has unknown parent %v", n.ID, n.Parent))
		}
		t.children[n.Parent] = append(t.children[n.Parent], n.ID)
	}

	for _, root := range t.roots {
		t.collectLeaves(root)
	}
	if len(t.leaves) != len(t.nodes) {
		return nil, errors.NewValidationError("parent", nil, "node hierarchy contains a cycle")
	}

	for _, id := range initial {
		if !t.isLeaf(id) {
			return nil, errors.NewValidationError("selected", id, fmt.Sprintf("%v is not a leaf node", id))
		}
	}
	t.set = New(initial)
	return t, nil
}

// collectLeaves fills t.leaves for id and its descendants.
func (t *Tree[K]) collectLeaves(id K) []K {
	kids := t.children[id]
	if len(kids) == 0 {
		t.leaves[id] = []K{id}
		return t.leaves[id]
	}
	var out []K
	for _, child := range kids {
		out = append(out, t.collectLeaves(child)...)
	}
	t.leaves[id] = out
	return out
}

func (t *Tree[K]) isLeaf(id K) bool {
	_, known := t.nodes[id]
	return known && len(t.children[id]) == 0
}

// Node returns the node with the given id.
func (t *Tree[K]) Node(id K) (Node[K], bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Roots returns the top level node ids.
func (t *Tree[K]) Roots() []K {
	return append([]K(nil), t.roots...)
}

// Children returns the direct children of id.
func (t *Tree[K]) Children(id K) ([]K, error) {
	if _, ok := t.nodes[id]; !ok {
		return nil, errors.NewNotFoundError("node", id)
	}
	return append([]K(nil), t.children[id]...), nil
}

// Leaves returns the leaf ids below id, or id itself for a leaf.
func (t *Tree[K]) Leaves(id K) ([]K, error) {
	leaves, ok := t.leaves[id]
	if !ok {
		return nil, errors.NewNotFoundError("node", id)
	}
	return append([]K(nil), leaves...), nil
}

// State derives the checkbox state of id from its leaves.
func (t *Tree[K]) State(id K) (State, error) {
	leaves, ok := t.leaves[id]
	if !ok {
		return "", errors.NewNotFoundError("node", id)
	}
	return stateOf(t.set.CountSelected(leaves), len(leaves)), nil
}

// Toggle flips a leaf. For any other node it selects every leaf below it,
// unless the node is already Checked, in which case it clears them.
// Ancestors are never written; their state follows on the next read.
func (t *Tree[K]) Toggle(id K) error {
	state, err := t.State(id)
	if err != nil {
		return err
	}
	t.set.SetMany(t.leaves[id], state != Checked)
	return nil
}

// SetSelected selects or deselects every leaf below id.
func (t *Tree[K]) SetSelected(id K, selected bool) error {
	leaves, ok := t.leaves[id]
	if !ok {
		return errors.NewNotFoundError("node", id)
	}
	t.set.SetMany(leaves, selected)
	return nil
}

// Selected returns the selected leaves, sorted.
func (t *Tree[K]) Selected() []K {
	return t.set.Selected()
}

// Diff returns the leaves added to and removed from the initial selection.
func (t *Tree[K]) Diff() Diff[K] {
	return t.set.Diff()
}

// IsDirty reports whether the leaf selection changed.
func (t *Tree[K]) IsDirty() bool {
	return t.set.IsDirty()
}

// Reset restores the initial leaf selection.
func (t *Tree[K]) Reset() {
	t.set.Reset()
}

// Rebase replaces the initial selection with selected leaves.
func (t *Tree[K]) Rebase(selected []K) error {
	for _, id := range selected {
		if !t.isLeaf(id) {
			return errors.NewValidationError("selected", id, fmt.Sprintf("%v is not a leaf node", id))
		}
	}
	t.set.Rebase(selected)
	return nil
}
