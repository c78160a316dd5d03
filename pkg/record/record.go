// Package record provides a schemaless entity type for lists read from YAML
// or JSON files, keyed by their "id" field.
package record

import (
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/stagehand/pkg/constants"
	"github.com/agentstation/stagehand/pkg/errors"
	"github.com/agentstation/stagehand/pkg/staging"
)

// Record is one entity with arbitrary fields.
type Record map[string]any

// Key returns the id of a record as a string. Numeric ids are formatted
// without an exponent; a missing id is the empty string.
func Key(r Record) string {
	switch v := r[constants.IDField].(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int8, int16, int32, int64:
		return fmt.Sprint(v)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return Record{}
	}
	return maps.Clone(r)
}

// ApplyPatch returns a copy of the record with the patch applied. A nil
// value removes the field.
func (r Record) ApplyPatch(patch staging.Patch) Record {
	out := r.Clone()
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// Format is a supported record file format.
type Format string

const (
	// FormatYAML is YAML, the default.
	FormatYAML Format = "yaml"
	// FormatJSON is JSON.
	FormatJSON Format = "json"
)

// FormatOf infers the format of a file from its extension.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Load reads a list of records from a YAML or JSON file.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path) //nolint:gosec // caller chooses the file
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return parse(data, FormatOf(path), path)
}

// LoadFS reads a list of records from a file in fsys.
func LoadFS(fsys fs.FS, name string) ([]Record, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, errors.WrapIO("read", name, err)
	}
	return parse(data, FormatOf(name), name)
}

// Parse decodes a list of records. The document is either a list or an
// object holding the list under "items".
func Parse(data []byte, format Format) ([]Record, error) {
	return parse(data, format, "")
}

func parse(data []byte, format Format, file string) ([]Record, error) {
	if format != FormatYAML && format != FormatJSON {
		return nil, errors.NewParseError(string(format), file, "unsupported format", nil)
	}

	// JSON is a subset of YAML, one decoder serves both
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapParse(string(format), file, err)
	}

	if obj, ok := doc.(map[string]any); ok {
		doc, ok = obj["items"]
		if !ok {
			return nil, errors.NewParseError(string(format), file, `expected a list or an object with "items"`, nil)
		}
	}
	if doc == nil {
		return nil, nil
	}

	list, ok := doc.([]any)
	if !ok {
		return nil, errors.NewParseError(string(format), file, fmt.Sprintf("expected a list, got %T", doc), nil)
	}

	records := make([]Record, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, errors.NewParseError(string(format), file, fmt.Sprintf("item %d is %T, not an object", i, item), nil)
		}
		records = append(records, Record(m))
	}
	return records, nil
}

// ParseAssignments turns key=value pairs into a patch. Values are read as
// YAML scalars, so "5" is a number, "true" a boolean and "null" removes the
// field.
func ParseAssignments(pairs []string) (staging.Patch, error) {
	patch := make(staging.Patch, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.NewValidationError("set", pair, "expected key=value")
		}
		var value any
		if raw != "" {
			if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
				// not a valid YAML scalar, keep it verbatim
				value = raw
			}
		} else {
			value = ""
		}
		patch[key] = value
	}
	return patch, nil
}
