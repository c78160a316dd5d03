package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/stagehand/pkg/errors"
	"github.com/agentstation/stagehand/pkg/record"
	"github.com/agentstation/stagehand/pkg/selection"
	"github.com/agentstation/stagehand/pkg/staging"
)

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"table", "JSON", "yaml", ""} {
		_, err := ParseFormat(in)
		assert.NoError(t, err, in)
	}
	_, err := ParseFormat("xml")
	assert.True(t, errors.IsValidationError(err))
}

func TestItemsTable(t *testing.T) {
	engine, err := staging.New([]record.Record{
		{"id": "A", "unit_price": 2.5},
		{"id": "B", "name": "Beta"},
	}, record.Key)
	require.NoError(t, err)
	require.NoError(t, engine.StageUpdate("B", staging.Patch{"name": "Bravo"}))

	data := Items(engine.Visible())
	assert.Equal(t, []string{"ID", "State", "Name", "Unit Price"}, data.Headers)
	assert.Equal(t, [][]string{
		{"A", "unchanged", "", "2.5"},
		{"B", "updated", "Bravo", ""},
	}, data.Rows)

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatTable, engine.Visible(), func() Data { return data }))
	assert.Contains(t, buf.String(), "Bravo")
}

func TestPayloadTable(t *testing.T) {
	p := staging.Payload[string, record.Record]{
		Add:    []record.Record{{"id": "tmp-1", "name": "New"}},
		Update: []staging.UpdateEntry[string]{{ID: "A", Fields: staging.Patch{"qty": 3, "note": nil}}},
		Remove: []staging.RemoveEntry[string]{{ID: "B"}},
	}
	data := Payload(p)
	assert.Equal(t, [][]string{
		{"add", "tmp-1", "name=New"},
		{"update", "A", "note=<unset>, qty=3"},
		{"remove", "B", ""},
	}, data.Rows)
}

func TestEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, SelectionDiff(selection.Diff[string]{})))
	assert.Equal(t, "No selection changes\n", buf.String())
}

func TestStructuredFormats(t *testing.T) {
	diff := selection.Diff[string]{Add: []string{"c"}, Remove: []string{"a"}}
	tabular := func() Data {
		t.Fatal("table data is not used for structured output")
		return Data{}
	}

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatJSON, diff, tabular))
	assert.JSONEq(t, `{"add":["c"],"remove":["a"]}`, buf.String())

	buf.Reset()
	require.NoError(t, Print(&buf, FormatYAML, diff, tabular))
	assert.Equal(t, "add:\n- c\nremove:\n- a\n", buf.String())
}

func TestCell(t *testing.T) {
	assert.Equal(t, "", Cell(nil))
	assert.Equal(t, "0.1", Cell(0.1))
	assert.Equal(t, `{"a":1}`, Cell(map[string]any{"a": 1}))
	long := Cell(string(bytes.Repeat([]byte("x"), 100)))
	assert.Len(t, long, maxCellWidth)
}
