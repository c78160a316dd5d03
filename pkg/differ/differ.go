package differ

import (
	"cmp"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sort"

	"github.com/agentstation/stagehand/pkg/staging"
)

// Differ compares two versions of a list of entities.
type Differ[K cmp.Ordered, E any] struct {
	keyOf func(E) K

	// Options for controlling diff behavior
	ignoreFields   map[string]bool
	deepComparison bool
}

// New creates a Differ for entities identified by keyOf.
func New[K cmp.Ordered, E any](keyOf func(E) K, opts ...Option) *Differ[K, E] {
	o := &options{
		ignoreFields:   make(map[string]bool),
		deepComparison: true,
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Differ[K, E]{
		keyOf:          keyOf,
		ignoreFields:   o.ignoreFields,
		deepComparison: o.deepComparison,
	}
}

// Compute is a shorthand for New(keyOf, opts...).Compute(existing, updated).
func Compute[K cmp.Ordered, E any](existing, updated []E, keyOf func(E) K, opts ...Option) *Changeset[K, E] {
	return New(keyOf, opts...).Compute(existing, updated)
}

// Compute compares existing with updated. Items of updated whose key is
// empty, unknown or repeated are additions; items of existing missing from
// updated are removals; the rest are compared field by field.
func (diff *Differ[K, E]) Compute(existing, updated []E) *Changeset[K, E] {
	changeset := &Changeset[K, E]{keyOf: diff.keyOf}

	// Create maps for efficient lookup
	existingMap := make(map[K]E, len(existing))
	for _, item := range existing {
		existingMap[diff.keyOf(item)] = item
	}

	var zero K
	seen := make(map[K]bool, len(updated))
	for _, item := range updated {
		id := diff.keyOf(item)
		old, exists := existingMap[id]
		if id == zero || !exists || seen[id] {
			changeset.Added = append(changeset.Added, item)
			continue
		}
		seen[id] = true
		if update := diff.item(id, old, item); update != nil {
			changeset.Updated = append(changeset.Updated, *update)
		}
	}

	for _, item := range existing {
		if !seen[diff.keyOf(item)] {
			changeset.Removed = append(changeset.Removed, item)
		}
	}

	// Sort for consistent output
	diff.sort(changeset)

	return changeset
}

// item compares two versions of one entity. It returns nil when nothing
// outside the ignored fields changed.
func (diff *Differ[K, E]) item(id K, existing, updated E) *Update[K, E] {
	oldFields, errOld := staging.Fields(existing)
	newFields, errNew := staging.Fields(updated)
	if errOld != nil || errNew != nil {
		// opaque entities can only be compared whole
		if reflect.DeepEqual(existing, updated) {
			return nil
		}
		return &Update[K, E]{ID: id, Existing: existing, New: updated, Changes: []FieldChange{{
			Path:     "*",
			OldValue: formatValue(existing),
			NewValue: formatValue(updated),
			Type:     ChangeTypeUpdate,
		}}}
	}

	var changes []FieldChange
	patch := staging.Patch{}
	for _, field := range unionKeys(oldFields, newFields) {
		if diff.ignoreFields[field] {
			continue
		}
		oldValue, inOld := oldFields[field]
		newValue, inNew := newFields[field]

		fieldChanges := diff.compare(field, oldValue, inOld, newValue, inNew)
		if len(fieldChanges) == 0 {
			continue
		}
		changes = append(changes, fieldChanges...)
		if inNew {
			patch[field] = diff.patchValue(field, oldValue, newValue)
		} else {
			patch[field] = nil
		}
	}

	// If no changes, return nil
	if len(changes) == 0 {
		return nil
	}

	return &Update[K, E]{
		ID:       id,
		Existing: existing,
		New:      updated,
		Changes:  changes,
		Patch:    patch,
	}
}

// compare diffs one field. Nested objects are walked with dotted paths when
// deep comparison is enabled.
func (diff *Differ[K, E]) compare(path string, oldValue any, inOld bool, newValue any, inNew bool) []FieldChange {
	switch {
	case !inOld:
		return []FieldChange{{Path: path, NewValue: formatValue(newValue), Type: ChangeTypeAdd}}
	case !inNew:
		return []FieldChange{{Path: path, OldValue: formatValue(oldValue), Type: ChangeTypeRemove}}
	}

	oldMap, oldIsMap := oldValue.(map[string]any)
	newMap, newIsMap := newValue.(map[string]any)
	if diff.deepComparison && oldIsMap && newIsMap {
		var changes []FieldChange
		for _, key := range unionKeys(oldMap, newMap) {
			sub := path + "." + key
			if diff.ignoreFields[sub] {
				continue
			}
			o, okOld := oldMap[key]
			n, okNew := newMap[key]
			changes = append(changes, diff.compare(sub, o, okOld, n, okNew)...)
		}
		return changes
	}

	if valuesEqual(oldValue, newValue) {
		return nil
	}
	return []FieldChange{{
		Path:     path,
		OldValue: formatValue(oldValue),
		NewValue: formatValue(newValue),
		Type:     ChangeTypeUpdate,
	}}
}

// patchValue returns the value sent for a changed field. Below a nested
// object, ignored paths keep their old value.
func (diff *Differ[K, E]) patchValue(path string, oldValue, newValue any) any {
	oldMap, oldIsMap := oldValue.(map[string]any)
	newMap, newIsMap := newValue.(map[string]any)
	if !diff.deepComparison || !oldIsMap || !newIsMap {
		return newValue
	}

	out := make(map[string]any, len(newMap))
	for _, key := range unionKeys(oldMap, newMap) {
		sub := path + "." + key
		o, inOld := oldMap[key]
		n, inNew := newMap[key]
		switch {
		case diff.ignoreFields[sub]:
			if inOld {
				out[key] = o
			}
		case !inNew:
		case inOld:
			out[key] = diff.patchValue(sub, o, n)
		default:
			out[key] = n
		}
	}
	return out
}

// sort orders every bucket by key. Additions without a key keep their input
// order ahead of keyed ones.
func (diff *Differ[K, E]) sort(changeset *Changeset[K, E]) {
	sort.SliceStable(changeset.Added, func(i, j int) bool {
		return diff.keyOf(changeset.Added[i]) < diff.keyOf(changeset.Added[j])
	})
	sort.Slice(changeset.Updated, func(i, j int) bool {
		return changeset.Updated[i].ID < changeset.Updated[j].ID
	})
	sort.Slice(changeset.Removed, func(i, j int) bool {
		return diff.keyOf(changeset.Removed[i]) < diff.keyOf(changeset.Removed[j])
	})
}

// Helper functions

func unionKeys(a, b map[string]any) []string {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	return slices.Sorted(maps.Keys(keys))
}

// valuesEqual compares decoded values. Numbers compare by value so that an
// int read from YAML equals the same float64 read from JSON. Two integers
// compare exactly, whatever their width.
func valuesEqual(a, b any) bool {
	if ia, ok := asInteger(a); ok {
		if ib, ok := asInteger(b); ok {
			return ia == ib
		}
	}
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

// integer is a sign and magnitude, wide enough for any Go integer.
type integer struct {
	neg bool
	abs uint64
}

func asInteger(v any) (integer, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		if i < 0 {
			return integer{neg: true, abs: uint64(-(i + 1)) + 1}, true
		}
		return integer{abs: uint64(i)}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return integer{abs: rv.Uint()}, true
	}
	return integer{}, false
}

func asFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// formatValue renders a value for display.
func formatValue(v any) string {
	if v == nil {
		return "<nil>"
	}
	if s, ok := v.(string); ok {
		return truncateString(s, 50)
	}
	return truncateString(fmt.Sprint(v), 50)
}

// truncateString truncates a string to a maximum length.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
