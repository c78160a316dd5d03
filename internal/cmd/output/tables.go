package output

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentstation/stagehand/internal/drafts"
	"github.com/agentstation/stagehand/pkg/constants"
	"github.com/agentstation/stagehand/pkg/record"
	"github.com/agentstation/stagehand/pkg/selection"
	"github.com/agentstation/stagehand/pkg/staging"
)

// maxCellWidth truncates long values in table cells.
const maxCellWidth = 48

var headerCaser = cases.Title(language.English)

// header turns a field name such as "unit_price" into "Unit Price".
func header(field string) string {
	return headerCaser.String(strings.NewReplacer("_", " ", "-", " ").Replace(field))
}

// Cell formats a value for a table cell.
func Cell(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		s = val
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case map[string]any, []any, record.Record:
		data, err := json.Marshal(val)
		if err != nil {
			s = fmt.Sprint(val)
		} else {
			s = string(data)
		}
	default:
		s = fmt.Sprint(val)
	}
	if len(s) > maxCellWidth {
		return s[:maxCellWidth-3] + "..."
	}
	return s
}

// fieldColumns returns the sorted union of fields across records, without id.
func fieldColumns(recs []record.Record) []string {
	fields := make(map[string]struct{})
	for _, r := range recs {
		for k := range r {
			if k != constants.IDField {
				fields[k] = struct{}{}
			}
		}
	}
	return slices.Sorted(maps.Keys(fields))
}

// Items renders the visible list of a session, one row per item.
func Items(items []staging.Item[string, record.Record]) Data {
	recs := make([]record.Record, len(items))
	for i, item := range items {
		recs[i] = item.Entity
	}
	fields := fieldColumns(recs)

	headers := []string{"ID", "State"}
	for _, f := range fields {
		headers = append(headers, header(f))
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		row := []string{item.ID, string(item.State)}
		for _, f := range fields {
			row = append(row, Cell(item.Entity[f]))
		}
		rows = append(rows, row)
	}
	return Data{Headers: headers, Rows: rows, Empty: "No items"}
}

// Payload renders one row per staged operation.
func Payload(p staging.Payload[string, record.Record]) Data {
	data := Data{
		Headers: []string{"Operation", "ID", "Fields"},
		Empty:   p.String(),
	}
	for _, r := range p.Add {
		data.Rows = append(data.Rows, []string{"add", record.Key(r), fieldList(staging.Patch(r))})
	}
	for _, u := range p.Update {
		data.Rows = append(data.Rows, []string{"update", u.ID, fieldList(u.Fields)})
	}
	for _, r := range p.Remove {
		data.Rows = append(data.Rows, []string{"remove", r.ID, ""})
	}
	return data
}

// fieldList renders fields as sorted "key=value" pairs.
func fieldList(fields staging.Patch) string {
	var parts []string
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		if k == constants.IDField {
			continue
		}
		v := fields[k]
		if v == nil {
			parts = append(parts, k+"=<unset>")
			continue
		}
		parts = append(parts, k+"="+Cell(v))
	}
	return strings.Join(parts, ", ")
}

// SelectionDiff renders the ids added to and removed from a selection.
func SelectionDiff(d selection.Diff[string]) Data {
	data := Data{
		Headers: []string{"Change", "ID"},
		Empty:   "No selection changes",
	}
	for _, id := range d.Add {
		data.Rows = append(data.Rows, []string{"add", id})
	}
	for _, id := range d.Remove {
		data.Rows = append(data.Rows, []string{"remove", id})
	}
	return data
}

// Sessions renders stored draft sessions with their pending counts.
func Sessions(sessions []drafts.Session) Data {
	data := Data{
		Headers:         []string{"Name", "Endpoint", "Items", "Added", "Updated", "Removed", "Updated At"},
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignRight, AlignRight, AlignRight, AlignRight, AlignLeft},
		Empty:           "No sessions",
	}
	for _, s := range sessions {
		data.Rows = append(data.Rows, []string{
			s.Name,
			s.Endpoint,
			strconv.Itoa(len(s.State.Baseline)),
			strconv.Itoa(len(s.State.Added)),
			strconv.Itoa(len(s.State.Updates)),
			strconv.Itoa(len(s.State.Removed)),
			s.UpdatedAt.Time.Local().Format(constants.TimeFormatHuman),
		})
	}
	return data
}
