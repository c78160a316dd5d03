package staging

import (
	"cmp"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentstation/stagehand/pkg/constants"
	"github.com/agentstation/stagehand/pkg/errors"
)

// UpdateEntry is one element of the update bucket: the id of a baseline
// entity and its fields. It encodes flat, e.g. {"id": "A", "qty": 5}.
type UpdateEntry[K cmp.Ordered] struct {
	ID     K
	Fields Patch
}

// flatten merges the id into a copy of the fields.
func (u UpdateEntry[K]) flatten() map[string]any {
	out := make(map[string]any, len(u.Fields)+1)
	for k, v := range u.Fields {
		out[k] = v
	}
	out[constants.IDField] = u.ID
	return out
}

// MarshalJSON implements json.Marshaler.
func (u UpdateEntry[K]) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.flatten())
}

// MarshalYAML implements the goccy/go-yaml InterfaceMarshaler.
func (u UpdateEntry[K]) MarshalYAML() (any, error) {
	return u.flatten(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *UpdateEntry[K]) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rawID, ok := raw[constants.IDField]
	if !ok {
		return errors.NewValidationError(constants.IDField, nil, "update entry has no id")
	}
	if err := json.Unmarshal(rawID, &u.ID); err != nil {
		return errors.WrapValidation(constants.IDField, err)
	}
	delete(raw, constants.IDField)

	u.Fields = make(Patch, len(raw))
	for k, v := range raw {
		var value any
		if err := json.Unmarshal(v, &value); err != nil {
			return errors.WrapValidation(k, err)
		}
		u.Fields[k] = value
	}
	return nil
}

// RemoveEntry is one element of the remove bucket.
type RemoveEntry[K cmp.Ordered] struct {
	ID K `json:"id" yaml:"id" msgpack:"id"`
}

// Payload is the minimal description of all staged operations, suitable for
// a single backend write. Empty buckets are nil and omitted when encoded.
type Payload[K cmp.Ordered, E any] struct {
	Add    []E              `json:"add,omitempty" yaml:"add,omitempty"`
	Update []UpdateEntry[K] `json:"update,omitempty" yaml:"update,omitempty"`
	Remove []RemoveEntry[K] `json:"remove,omitempty" yaml:"remove,omitempty"`
}

// IsEmpty returns true if the payload contains no operations.
func (p Payload[K, E]) IsEmpty() bool {
	return p.Len() == 0
}

// Len returns the total number of operations in the payload.
func (p Payload[K, E]) Len() int {
	return len(p.Add) + len(p.Update) + len(p.Remove)
}

// UpdatedIDs returns the ids in the update bucket, in payload order.
func (p Payload[K, E]) UpdatedIDs() []K {
	ids := make([]K, len(p.Update))
	for i, u := range p.Update {
		ids[i] = u.ID
	}
	return ids
}

// RemovedIDs returns the ids in the remove bucket, in payload order.
func (p Payload[K, E]) RemovedIDs() []K {
	ids := make([]K, len(p.Remove))
	for i, r := range p.Remove {
		ids[i] = r.ID
	}
	return ids
}

// String returns a human-readable summary of the payload.
func (p Payload[K, E]) String() string {
	if p.IsEmpty() {
		return "No changes staged"
	}

	var parts []string
	if len(p.Add) > 0 {
		parts = append(parts, fmt.Sprintf("%d added", len(p.Add)))
	}
	if len(p.Update) > 0 {
		parts = append(parts, fmt.Sprintf("%d updated", len(p.Update)))
	}
	if len(p.Remove) > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", len(p.Remove)))
	}
	return fmt.Sprintf("Payload: %s (Total: %d changes)", strings.Join(parts, ", "), p.Len())
}

// ApplyStrategy represents which buckets of a payload to send.
type ApplyStrategy string

const (
	// ApplyAll applies all changes including removals.
	ApplyAll ApplyStrategy = "all"

	// ApplyAdditive only applies additions and updates, never removes.
	ApplyAdditive ApplyStrategy = "additive"

	// ApplyUpdatesOnly only applies updates to existing items.
	ApplyUpdatesOnly ApplyStrategy = "updates-only"

	// ApplyAdditionsOnly only applies new additions.
	ApplyAdditionsOnly ApplyStrategy = "additions-only"
)

// Filter returns the payload restricted to the buckets allowed by strategy.
// Unknown strategies behave like ApplyAll.
func (p Payload[K, E]) Filter(strategy ApplyStrategy) Payload[K, E] {
	switch strategy {
	case ApplyAdditive:
		return Payload[K, E]{Add: p.Add, Update: p.Update}
	case ApplyUpdatesOnly:
		return Payload[K, E]{Update: p.Update}
	case ApplyAdditionsOnly:
		return Payload[K, E]{Add: p.Add}
	default:
		return p
	}
}
