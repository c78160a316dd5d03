// Package differ compares two versions of an entity list and expresses the
// result as staged operations.
package differ

import (
	"cmp"
	"fmt"
	"io"
	"strings"

	"github.com/agentstation/stagehand/pkg/staging"
)

// ChangeType represents the type of change.
type ChangeType string

const (
	// ChangeTypeAdd indicates an item or field was added.
	ChangeTypeAdd ChangeType = "add"
	// ChangeTypeUpdate indicates an item or field was updated.
	ChangeTypeUpdate ChangeType = "update"
	// ChangeTypeRemove indicates an item or field was removed.
	ChangeTypeRemove ChangeType = "remove"
)

// FieldChange represents a change to a specific field.
type FieldChange struct {
	Path     string     `json:"path" yaml:"path"`                               // Field path (e.g., "pricing.input")
	OldValue string     `json:"old_value,omitempty" yaml:"old_value,omitempty"` // Previous value (string representation)
	NewValue string     `json:"new_value,omitempty" yaml:"new_value,omitempty"` // New value (string representation)
	Type     ChangeType `json:"type" yaml:"type"`                               // Type of change
}

// Update represents an update to an existing item.
type Update[K cmp.Ordered, E any] struct {
	ID       K             `json:"id" yaml:"id"`
	Existing E             `json:"existing" yaml:"existing"`
	New      E             `json:"new" yaml:"new"`
	Changes  []FieldChange `json:"changes" yaml:"changes"`
	// Patch holds the changed top level fields with their new values.
	// Fields dropped from the new version map to nil.
	Patch staging.Patch `json:"patch" yaml:"patch"`
}

// Changeset represents all changes between two lists.
type Changeset[K cmp.Ordered, E any] struct {
	Added   []E            `json:"added,omitempty" yaml:"added,omitempty"`
	Updated []Update[K, E] `json:"updated,omitempty" yaml:"updated,omitempty"`
	Removed []E            `json:"removed,omitempty" yaml:"removed,omitempty"`

	keyOf func(E) K
}

// Len returns the total number of changed items.
func (c *Changeset[K, E]) Len() int {
	return len(c.Added) + len(c.Updated) + len(c.Removed)
}

// HasChanges returns true if the changeset contains any changes.
func (c *Changeset[K, E]) HasChanges() bool {
	return c.Len() > 0
}

// IsEmpty returns true if the changeset contains no changes.
func (c *Changeset[K, E]) IsEmpty() bool {
	return c.Len() == 0
}

// String returns a human-readable summary of the changeset.
func (c *Changeset[K, E]) String() string {
	if c.IsEmpty() {
		return "No changes detected"
	}

	var parts []string
	if len(c.Added) > 0 {
		parts = append(parts, fmt.Sprintf("%d added", len(c.Added)))
	}
	if len(c.Updated) > 0 {
		parts = append(parts, fmt.Sprintf("%d updated", len(c.Updated)))
	}
	if len(c.Removed) > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", len(c.Removed)))
	}
	return fmt.Sprintf("Changeset: %s (Total: %d changes)", strings.Join(parts, ", "), c.Len())
}

// Print writes a detailed, human-readable view of the changeset.
func (c *Changeset[K, E]) Print(w io.Writer) {
	fmt.Fprintln(w, c.String())
	if c.IsEmpty() {
		return
	}
	fmt.Fprintln(w, strings.Repeat("─", 80))

	if len(c.Added) > 0 {
		fmt.Fprintf(w, "\n➕ Added (%d):\n", len(c.Added))
		for _, item := range c.Added {
			fmt.Fprintf(w, "  • %s\n", c.label(item))
		}
	}

	if len(c.Updated) > 0 {
		fmt.Fprintf(w, "\n🔄 Updated (%d):\n", len(c.Updated))
		for _, update := range c.Updated {
			fmt.Fprintf(w, "  • %v:\n", update.ID)
			for _, change := range update.Changes {
				switch change.Type {
				case ChangeTypeAdd:
					fmt.Fprintf(w, "    + %s: %s\n", change.Path, change.NewValue)
				case ChangeTypeRemove:
					fmt.Fprintf(w, "    - %s: %s\n", change.Path, change.OldValue)
				default:
					fmt.Fprintf(w, "    ~ %s: %s → %s\n", change.Path, change.OldValue, change.NewValue)
				}
			}
		}
	}

	if len(c.Removed) > 0 {
		fmt.Fprintf(w, "\n⚠️  Removed (%d):\n", len(c.Removed))
		for _, item := range c.Removed {
			fmt.Fprintf(w, "  • %s\n", c.label(item))
		}
	}
}

// label names an item by its key, or "(new)" when it has none.
func (c *Changeset[K, E]) label(item E) string {
	var zero K
	if id := c.keyOf(item); id != zero {
		return fmt.Sprint(id)
	}
	return "(new)"
}

// Filter filters the changeset based on the apply strategy.
func (c *Changeset[K, E]) Filter(strategy staging.ApplyStrategy) *Changeset[K, E] {
	filtered := &Changeset[K, E]{keyOf: c.keyOf}

	switch strategy {
	case staging.ApplyAdditive:
		filtered.Added = c.Added
		filtered.Updated = c.Updated
	case staging.ApplyUpdatesOnly:
		filtered.Updated = c.Updated
	case staging.ApplyAdditionsOnly:
		filtered.Added = c.Added
	default:
		return c
	}
	return filtered
}

// Payload expresses the changeset as a backend write.
func (c *Changeset[K, E]) Payload() staging.Payload[K, E] {
	var p staging.Payload[K, E]
	if len(c.Added) > 0 {
		p.Add = append([]E(nil), c.Added...)
	}
	for _, u := range c.Updated {
		p.Update = append(p.Update, staging.UpdateEntry[K]{ID: u.ID, Fields: u.Patch.Clone()})
	}
	for _, item := range c.Removed {
		p.Remove = append(p.Remove, staging.RemoveEntry[K]{ID: c.keyOf(item)})
	}
	return p
}

// Stage replays the changeset onto an engine whose baseline is the existing
// list. It stops at the first operation the engine rejects.
func (c *Changeset[K, E]) Stage(engine *staging.Engine[K, E]) error {
	for _, item := range c.Added {
		engine.StageAdd(item)
	}
	for _, u := range c.Updated {
		if err := engine.StageUpdate(u.ID, u.Patch); err != nil {
			return err
		}
	}
	for _, item := range c.Removed {
		if err := engine.StageRemove(c.keyOf(item)); err != nil {
			return err
		}
	}
	return nil
}
