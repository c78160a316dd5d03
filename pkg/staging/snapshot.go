package staging

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/agentstation/stagehand/pkg/constants"
	"github.com/agentstation/stagehand/pkg/errors"
)

// Draft is a pending addition as stored in a snapshot.
type Draft[K cmp.Ordered, E any] struct {
	ID     K `json:"id" yaml:"id" msgpack:"id"`
	Entity E `json:"entity" yaml:"entity" msgpack:"entity"`
}

// Snapshot is the serializable state of an engine.
type Snapshot[K cmp.Ordered, E any] struct {
	Baseline []E           `json:"baseline" yaml:"baseline" msgpack:"baseline"`
	Added    []Draft[K, E] `json:"added,omitempty" yaml:"added,omitempty" msgpack:"added,omitempty"`
	Updates  map[K]Patch   `json:"updates,omitempty" yaml:"updates,omitempty" msgpack:"updates,omitempty"`
	Removed  []K           `json:"removed,omitempty" yaml:"removed,omitempty" msgpack:"removed,omitempty"`
}

// Snapshot captures the engine state. The snapshot shares no mutable
// structures with the engine.
func (e *Engine[K, E]) Snapshot() Snapshot[K, E] {
	s := Snapshot[K, E]{Baseline: slices.Clone(e.baseline)}
	for _, d := range e.added {
		s.Added = append(s.Added, Draft[K, E]{ID: d.id, Entity: d.entity})
	}
	if len(e.updates) > 0 {
		s.Updates = make(map[K]Patch, len(e.updates))
		for id, p := range e.updates {
			s.Updates[id] = p.Clone()
		}
	}
	if len(e.removes) > 0 {
		s.Removed = slices.Sorted(maps.Keys(e.removes))
	}
	return s
}

// FromSnapshot rebuilds an engine from a snapshot. Staged operations are
// validated against the snapshot baseline with the same rules as the
// staging methods; any inconsistency fails with ErrInvalidInput.
func FromSnapshot[K cmp.Ordered, E any](s Snapshot[K, E], keyOf func(E) K, opts ...Option) (*Engine[K, E], error) {
	e, err := New(s.Baseline, keyOf, opts...)
	if err != nil {
		return nil, err
	}

	var zero K
	for _, d := range s.Added {
		if d.ID == zero || e.known(d.ID) {
			return nil, errors.NewValidationError(constants.IDField, d.ID, fmt.Sprintf("pending addition id %v is empty or already in use", d.ID))
		}
		e.added = append(e.added, draft[K, E]{id: d.ID, entity: d.Entity})
	}

	for _, id := range s.Removed {
		if _, ok := e.index[id]; !ok {
			return nil, errors.NewValidationError(constants.IDField, id, fmt.Sprintf("removed id %v is not in the baseline", id))
		}
		e.removes[id] = struct{}{}
	}

	for _, id := range slices.Sorted(maps.Keys(s.Updates)) {
		if _, removed := e.removes[id]; removed {
			return nil, errors.NewValidationError(constants.IDField, id, fmt.Sprintf("id %v is both updated and removed", id))
		}
		if err := e.StageUpdate(id, s.Updates[id]); err != nil {
			return nil, errors.WrapValidation(constants.IDField, err)
		}
	}
	return e, nil
}
