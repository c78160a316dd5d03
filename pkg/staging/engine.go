// Package staging tracks add, update and remove operations staged against a
// baseline collection and derives the visible list and the minimal payload a
// backend needs to persist them.
//
// An Engine is owned by one form or table. It is synchronous, does no I/O and
// is not safe for concurrent mutation; callers serialize access.
//
// Example usage:
//
//	engine, err := staging.New(items, func(i Item) string { return i.ID })
//	if err != nil {
//	    return err
//	}
//	tempID := engine.StageAdd(Item{Name: "Paper A4"})
//	_ = engine.StageUpdate("A", staging.Patch{"qty": 5})
//	_ = engine.StageRemove("B")
//
//	payload := engine.Payload() // {add: [...], update: [{id: A, qty: 5}], remove: [{id: B}]}
//	// after a successful save:
//	_ = engine.SetBaseline(fresh)
package staging

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/rs/zerolog"

	"github.com/agentstation/stagehand/pkg/constants"
	"github.com/agentstation/stagehand/pkg/errors"
	"github.com/agentstation/stagehand/pkg/logging"
)

// maxTempIDAttempts bounds how many colliding temporary ids are skipped
// before the generator is considered broken.
const maxTempIDAttempts = 1 << 16

// State is the pending state of a single entity.
type State string

const (
	// StateUnchanged marks a baseline entity with no staged operation.
	StateUnchanged State = "unchanged"
	// StateAdded marks a pending addition.
	StateAdded State = "added"
	// StateUpdated marks a baseline entity with staged field changes.
	StateUpdated State = "updated"
	// StateRemoved marks a baseline entity staged for removal.
	StateRemoved State = "removed"
)

// Item is one row of the visible list.
type Item[K cmp.Ordered, E any] struct {
	ID     K     `json:"id" yaml:"id"`
	Entity E     `json:"entity" yaml:"entity"`
	State  State `json:"state" yaml:"state"`
}

// Counts summarizes the engine state.
type Counts struct {
	Baseline int `json:"baseline" yaml:"baseline"`
	Visible  int `json:"visible" yaml:"visible"`
	Added    int `json:"added" yaml:"added"`
	Updated  int `json:"updated" yaml:"updated"`
	Removed  int `json:"removed" yaml:"removed"`
}

// draft is a pending addition.
type draft[K cmp.Ordered, E any] struct {
	id     K
	entity E
}

// Engine holds a baseline collection plus staged operations.
type Engine[K cmp.Ordered, E any] struct {
	keyOf    func(E) K
	patcher  Patcher[E]
	ids      IDGenerator[K]
	mode     UpdateMode
	position Position
	logger   *zerolog.Logger

	baseline []E
	index    map[K]int

	added   []draft[K, E] // staging order
	updates map[K]Patch
	removes map[K]struct{}
}

// New creates an engine over the given baseline. keyOf returns the stable id
// of an entity. New fails with ErrInvalidInput when an id is empty or repeated.
func New[K cmp.Ordered, E any](baseline []E, keyOf func(E) K, opts ...Option) (*Engine[K, E], error) {
	if keyOf == nil {
		return nil, errors.NewConfigError("staging", "key accessor is required", nil)
	}

	o := &options{
		mode:     UpdatePartial,
		position: Prepend,
	}
	for _, opt := range opts {
		opt(o)
	}

	e := &Engine[K, E]{
		keyOf:    keyOf,
		mode:     o.mode,
		position: o.position,
		logger:   o.logger,
		updates:  make(map[K]Patch),
		removes:  make(map[K]struct{}),
	}

	switch o.mode {
	case UpdatePartial, UpdateFull:
	default:
		return nil, errors.NewConfigError("staging", fmt.Sprintf("unknown update mode %q", o.mode), nil)
	}
	switch o.position {
	case Prepend, Append:
	default:
		return nil, errors.NewConfigError("staging", fmt.Sprintf("unknown added position %q", o.position), nil)
	}

	if o.patcher != nil {
		p, ok := o.patcher.(Patcher[E])
		if !ok {
			return nil, errors.NewConfigError("staging", fmt.Sprintf("patcher %T does not patch %T", o.patcher, *new(E)), nil)
		}
		e.patcher = p
	} else {
		e.patcher = DefaultPatcher[E]()
	}

	if o.ids != nil {
		g, ok := o.ids.(IDGenerator[K])
		if !ok {
			return nil, errors.NewConfigError("staging", fmt.Sprintf("id generator %T does not produce %T keys", o.ids, *new(K)), nil)
		}
		e.ids = g
	} else {
		if _, ok := counterID[K](1); !ok {
			return nil, errors.NewConfigError("staging", fmt.Sprintf("no default temporary id for %T keys, use WithIDGenerator", *new(K)), nil)
		}
		e.ids = &Counter[K]{}
	}

	if e.logger == nil {
		e.logger = logging.NewNopLogger()
	}

	items, index, err := e.indexBaseline(baseline)
	if err != nil {
		return nil, err
	}
	e.baseline = items
	e.index = index

	return e, nil
}

// indexBaseline copies items and indexes them by id.
func (e *Engine[K, E]) indexBaseline(items []E) ([]E, map[K]int, error) {
	var zero K
	index := make(map[K]int, len(items))
	for i, item := range items {
		id := e.keyOf(item)
		if id == zero {
			return nil, nil, errors.NewValidationError(constants.IDField, id, fmt.Sprintf("baseline item %d has an empty id", i))
		}
		if _, dup := index[id]; dup {
			return nil, nil, errors.NewValidationError(constants.IDField, id, fmt.Sprintf("duplicate id %v", id))
		}
		index[id] = i
	}
	return slices.Clone(items), index, nil
}

// StageAdd stages a new entity and returns its id. When the entity carries no
// id, or one that is already known, a temporary id is assigned and a colliding
// id is cleared from the entity, so the addition is never posted under the id
// of another item.
func (e *Engine[K, E]) StageAdd(entity E) K {
	var zero K
	id := e.keyOf(entity)
	if id == zero || e.known(id) {
		if id != zero {
			entity = e.withoutID(entity, id)
		}
		id = e.nextTempID()
	}
	e.added = append(e.added, draft[K, E]{id: id, entity: entity})

	e.logger.Debug().
		Str("operation", "stage_add").
		Interface("id", id).
		Int("pending_adds", len(e.added)).
		Msg("Staged addition")
	return id
}

// StageUpdate merges changes into the staged update for a baseline entity, or
// applies them in place to a pending addition. Later values win per field.
// It returns ErrNotFound when id is unknown or staged for removal, and
// ErrInvalidInput when the changes cannot be applied.
func (e *Engine[K, E]) StageUpdate(id K, changes Patch) error {
	if i := e.findAdded(id); i >= 0 {
		if len(changes) == 0 {
			return nil
		}
		patched, err := e.patcher.Apply(e.added[i].entity, changes)
		if err != nil {
			return err
		}
		var zero K
		next := e.keyOf(patched)
		if next != zero && next != id && next != e.keyOf(e.added[i].entity) && e.known(next) {
			return errors.NewValidationError(constants.IDField, next, "the id is already used by another item")
		}
		e.added[i].entity = patched
		e.logger.Debug().
			Str("operation", "stage_update").
			Interface("id", id).
			Bool("pending_add", true).
			Msg("Updated pending addition")
		return nil
	}

	idx, ok := e.index[id]
	if !ok {
		return errors.NewNotFoundError("item", id)
	}
	if _, removed := e.removes[id]; removed {
		return errors.NewNotFoundError("item", id)
	}
	if len(changes) == 0 {
		return nil
	}

	merged := e.updates[id].Merge(changes)
	original := e.baseline[idx]
	patched, err := e.patcher.Apply(original, merged)
	if err != nil {
		return err
	}
	if e.keyOf(patched) != id {
		return errors.NewValidationError(constants.IDField, e.keyOf(patched), "the id of a baseline item cannot change")
	}
	e.updates[id] = merged

	e.logger.Debug().
		Str("operation", "stage_update").
		Interface("id", id).
		Int("fields", len(merged)).
		Msg("Staged update")
	return nil
}

// StageRemove stages removal of an entity. Removing a pending addition simply
// drops it. Removing a baseline entity discards any staged update for it.
// Removing an entity that is already staged for removal is a no-op.
func (e *Engine[K, E]) StageRemove(id K) error {
	if i := e.findAdded(id); i >= 0 {
		e.added = slices.Delete(e.added, i, i+1)
		e.logger.Debug().
			Str("operation", "stage_remove").
			Interface("id", id).
			Bool("pending_add", true).
			Msg("Dropped pending addition")
		return nil
	}

	if _, ok := e.index[id]; !ok {
		return errors.NewNotFoundError("item", id)
	}
	delete(e.updates, id)
	e.removes[id] = struct{}{}

	e.logger.Debug().
		Str("operation", "stage_remove").
		Interface("id", id).
		Msg("Staged removal")
	return nil
}

// Restore undoes a staged removal.
func (e *Engine[K, E]) Restore(id K) error {
	if _, ok := e.removes[id]; !ok {
		return errors.NewNotFoundError("staged removal", id)
	}
	delete(e.removes, id)
	e.logger.Debug().Str("operation", "restore").Interface("id", id).Msg("Restored item")
	return nil
}

// Discard drops whatever is staged for id: an update, a removal or a
// pending addition.
func (e *Engine[K, E]) Discard(id K) error {
	if i := e.findAdded(id); i >= 0 {
		e.added = slices.Delete(e.added, i, i+1)
		e.logger.Debug().
			Str("operation", "discard").
			Interface("id", id).
			Bool("pending_add", true).
			Msg("Discarded pending addition")
		return nil
	}
	if _, ok := e.index[id]; !ok {
		return errors.NewNotFoundError("item", id)
	}
	delete(e.updates, id)
	delete(e.removes, id)
	e.logger.Debug().Str("operation", "discard").Interface("id", id).Msg("Discarded staged changes")
	return nil
}

// Reset clears all staged operations. The baseline is untouched.
func (e *Engine[K, E]) Reset() {
	e.added = nil
	clear(e.updates)
	clear(e.removes)
	e.ids.Reset()
	e.logger.Debug().Str("operation", "reset").Msg("Cleared staged operations")
}

// SetBaseline replaces the baseline and clears all staged operations.
// On error the engine is left untouched.
func (e *Engine[K, E]) SetBaseline(items []E) error {
	baseline, index, err := e.indexBaseline(items)
	if err != nil {
		return err
	}
	e.baseline = baseline
	e.index = index
	e.Reset()
	e.logger.Debug().
		Str("operation", "set_baseline").
		Int("items", len(baseline)).
		Msg("Replaced baseline")
	return nil
}

// Baseline returns a copy of the baseline in its original order.
func (e *Engine[K, E]) Baseline() []E {
	return slices.Clone(e.baseline)
}

// Visible returns the rows to render: baseline order with removed entities
// filtered out and updated ones merged, plus pending additions at the
// configured position.
func (e *Engine[K, E]) Visible() []Item[K, E] {
	items := make([]Item[K, E], 0, len(e.baseline)-len(e.removes)+len(e.added))

	if e.position == Prepend {
		for i := len(e.added) - 1; i >= 0; i-- {
			items = append(items, Item[K, E]{ID: e.added[i].id, Entity: e.added[i].entity, State: StateAdded})
		}
	}

	for _, entity := range e.baseline {
		id := e.keyOf(entity)
		if _, removed := e.removes[id]; removed {
			continue
		}
		items = append(items, e.baselineItem(id, entity))
	}

	if e.position == Append {
		for _, d := range e.added {
			items = append(items, Item[K, E]{ID: d.id, Entity: d.entity, State: StateAdded})
		}
	}
	return items
}

// Get returns the visible item for id.
func (e *Engine[K, E]) Get(id K) (Item[K, E], bool) {
	if i := e.findAdded(id); i >= 0 {
		return Item[K, E]{ID: id, Entity: e.added[i].entity, State: StateAdded}, true
	}
	idx, ok := e.index[id]
	if !ok {
		return Item[K, E]{}, false
	}
	if _, removed := e.removes[id]; removed {
		return Item[K, E]{}, false
	}
	return e.baselineItem(id, e.baseline[idx]), true
}

// baselineItem merges any staged update into a baseline entity.
func (e *Engine[K, E]) baselineItem(id K, entity E) Item[K, E] {
	patch, updated := e.updates[id]
	if !updated {
		return Item[K, E]{ID: id, Entity: entity, State: StateUnchanged}
	}
	merged, err := e.patcher.Apply(entity, patch)
	if err != nil {
		// patches are validated when staged, so this only happens with a
		// patcher that is not deterministic
		e.logger.Warn().Err(err).Interface("id", id).Msg("Failed to apply staged update")
		return Item[K, E]{ID: id, Entity: entity, State: StateUpdated}
	}
	return Item[K, E]{ID: id, Entity: merged, State: StateUpdated}
}

// Payload returns the staged operations as a backend write. Additions keep
// staging order; updates and removals are sorted by id.
func (e *Engine[K, E]) Payload() Payload[K, E] {
	var p Payload[K, E]

	if len(e.added) > 0 {
		p.Add = make([]E, len(e.added))
		for i, d := range e.added {
			p.Add[i] = d.entity
		}
	}

	if len(e.updates) > 0 {
		ids := slices.Sorted(maps.Keys(e.updates))
		p.Update = make([]UpdateEntry[K], 0, len(ids))
		for _, id := range ids {
			p.Update = append(p.Update, UpdateEntry[K]{ID: id, Fields: e.updateFields(id)})
		}
	}

	if len(e.removes) > 0 {
		ids := slices.Sorted(maps.Keys(e.removes))
		p.Remove = make([]RemoveEntry[K], len(ids))
		for i, id := range ids {
			p.Remove[i] = RemoveEntry[K]{ID: id}
		}
	}
	return p
}

// updateFields returns the update entry fields according to the update mode.
func (e *Engine[K, E]) updateFields(id K) Patch {
	patch := e.updates[id]
	if e.mode != UpdateFull {
		return patch.Clone()
	}
	item := e.baselineItem(id, e.baseline[e.index[id]])
	fields, err := Fields(item.Entity)
	if err != nil {
		e.logger.Warn().Err(err).Interface("id", id).Msg("Falling back to partial update")
		return patch.Clone()
	}
	return fields
}

// IsDirty returns true if any operation is staged.
func (e *Engine[K, E]) IsDirty() bool {
	return len(e.added) > 0 || len(e.updates) > 0 || len(e.removes) > 0
}

// StateOf returns the pending state of id, or false when id is unknown.
func (e *Engine[K, E]) StateOf(id K) (State, bool) {
	if e.findAdded(id) >= 0 {
		return StateAdded, true
	}
	if _, ok := e.index[id]; !ok {
		return "", false
	}
	if _, removed := e.removes[id]; removed {
		return StateRemoved, true
	}
	if _, updated := e.updates[id]; updated {
		return StateUpdated, true
	}
	return StateUnchanged, true
}

// Counts summarizes the engine state.
func (e *Engine[K, E]) Counts() Counts {
	return Counts{
		Baseline: len(e.baseline),
		Visible:  len(e.baseline) - len(e.removes) + len(e.added),
		Added:    len(e.added),
		Updated:  len(e.updates),
		Removed:  len(e.removes),
	}
}

// known reports whether id belongs to the baseline or a pending addition.
func (e *Engine[K, E]) known(id K) bool {
	if _, ok := e.index[id]; ok {
		return true
	}
	return e.findAdded(id) >= 0
}

func (e *Engine[K, E]) findAdded(id K) int {
	return slices.IndexFunc(e.added, func(d draft[K, E]) bool { return d.id == id })
}

// withoutID clears the "id" field of an addition whose id collides with a
// known one. Entities keyed by another field keep their id.
func (e *Engine[K, E]) withoutID(entity E, id K) E {
	var zero K
	stripped, err := e.patcher.Apply(entity, Patch{constants.IDField: nil})
	if err != nil || e.keyOf(stripped) != zero {
		e.logger.Warn().
			Str("operation", "stage_add").
			Interface("id", id).
			Msg("Added entity keeps an id that is already known")
		return entity
	}
	return stripped
}

// nextTempID draws ids from the generator until one is unused.
func (e *Engine[K, E]) nextTempID() K {
	var zero K
	for range maxTempIDAttempts {
		id := e.ids.Next()
		if id != zero && !e.known(id) {
			return id
		}
	}
	panic(fmt.Sprintf("staging: id generator %T produced no unused id in %d attempts", e.ids, maxTempIDAttempts))
}
