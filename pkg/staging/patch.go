package staging

import (
	"encoding/json"
	"maps"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/agentstation/stagehand/pkg/errors"
)

// Patch holds changed fields keyed by their wire (json tag) name.
type Patch map[string]any

// Clone returns a shallow copy of the patch. A nil patch clones to an empty one.
func (p Patch) Clone() Patch {
	out := make(Patch, len(p))
	maps.Copy(out, p)
	return out
}

// Merge overlays other onto a copy of p. Fields in other win.
func (p Patch) Merge(other Patch) Patch {
	out := p.Clone()
	maps.Copy(out, other)
	return out
}

// Patcher applies a patch to an entity and returns the patched copy.
// Implementations must not mutate the entity they are given.
type Patcher[E any] interface {
	Apply(entity E, patch Patch) (E, error)
}

// PatcherFunc allows functions to implement Patcher.
type PatcherFunc[E any] func(E, Patch) (E, error)

// Apply implements the Patcher interface.
func (f PatcherFunc[E]) Apply(entity E, patch Patch) (E, error) {
	return f(entity, patch)
}

// Patchable is implemented by entities that know how to apply patches to themselves.
type Patchable[E any] interface {
	ApplyPatch(patch Patch) E
}

// DefaultPatcher returns the patcher used when none is configured.
//
// Entities implementing Patchable patch themselves. Maps with string keys are
// cloned and overlaid, with nil values deleting their key. Structs (and pointers to structs) are copied and the
// patch is decoded into the copy by json tag name, with weak typing so form
// input such as "5" lands in an int field.
func DefaultPatcher[E any]() Patcher[E] {
	return PatcherFunc[E](applyDefault[E])
}

func applyDefault[E any](entity E, patch Patch) (E, error) {
	if p, ok := any(entity).(Patchable[E]); ok {
		return p.ApplyPatch(patch), nil
	}

	rv := reflect.ValueOf(&entity).Elem()
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return entity, errors.NewValidationError("patch", patch, "map entities must have string keys")
		}
		return overlayMap(entity, rv, patch)
	case reflect.Pointer:
		if rv.IsNil() {
			return entity, errors.NewValidationError("patch", patch, "cannot patch a nil entity")
		}
		if rv.Elem().Kind() != reflect.Struct {
			return entity, errors.NewValidationError("patch", patch, "unsupported entity kind "+rv.Type().String())
		}
		clone := reflect.New(rv.Type().Elem())
		clone.Elem().Set(rv.Elem())
		if err := decodePatch(patch, clone.Interface()); err != nil {
			return entity, errors.WrapValidation("patch", err)
		}
		return clone.Interface().(E), nil //nolint:errcheck // type is E by construction
	case reflect.Struct:
	default:
		return entity, errors.NewValidationError("patch", patch, "unsupported entity kind "+rv.Kind().String())
	}

	if err := decodePatch(patch, &entity); err != nil {
		return entity, errors.WrapValidation("patch", err)
	}
	return entity, nil
}

// overlayMap copies the map held in rv and sets every patch key on the copy.
// A nil value deletes the key.
func overlayMap[E any](entity E, rv reflect.Value, patch Patch) (E, error) {
	out := reflect.MakeMapWithSize(rv.Type(), rv.Len()+len(patch))
	iter := rv.MapRange()
	for iter.Next() {
		out.SetMapIndex(iter.Key(), iter.Value())
	}

	elemType := rv.Type().Elem()
	keyType := rv.Type().Key()
	for k, v := range patch {
		key := reflect.ValueOf(k).Convert(keyType)
		if v == nil {
			out.SetMapIndex(key, reflect.Value{})
			continue
		}
		val := reflect.ValueOf(v)
		if !val.Type().AssignableTo(elemType) {
			if !val.Type().ConvertibleTo(elemType) {
				return entity, errors.NewValidationError(k, v, "value type "+val.Type().String()+" does not fit "+elemType.String())
			}
			val = val.Convert(elemType)
		}
		out.SetMapIndex(key, val)
	}
	return out.Interface().(E), nil //nolint:errcheck // type is E by construction
}

// decodePatch decodes the patch into target. ZeroFields makes maps, slices and
// pointers named in the patch freshly allocated, so the copy never shares them
// with the original entity.
func decodePatch(patch Patch, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "json",
		WeaklyTypedInput: true,
		ZeroFields:       true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(map[string]any(patch))
}

// Fields returns the wire representation of an entity as a field map.
// Maps are copied; everything else goes through its JSON encoding.
func Fields[E any](entity E) (Patch, error) {
	rv := reflect.ValueOf(entity)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		out := make(Patch, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, nil
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return nil, errors.WrapParse("json", "", err)
	}
	out := Patch{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.WrapParse("json", "", err)
	}
	return out, nil
}
