package differ

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/stagehand/pkg/logging"
	"github.com/agentstation/stagehand/pkg/staging"
)

type pricing struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

type sku struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Qty     int      `json:"qty"`
	Note    string   `json:"note,omitempty"`
	Pricing *pricing `json:"pricing,omitempty"`
}

func skuKey(s sku) string { return s.ID }

func existingSKUs() []sku {
	return []sku{
		{ID: "a", Name: "Paper", Qty: 1, Pricing: &pricing{Input: 1, Output: 2}},
		{ID: "b", Name: "Toner", Qty: 2, Note: "black"},
		{ID: "c", Name: "Stapler", Qty: 3},
	}
}

func updatedSKUs() []sku {
	return []sku{
		{ID: "c", Name: "Stapler", Qty: 3},
		{ID: "a", Name: "Paper", Qty: 5, Pricing: &pricing{Input: 1, Output: 3}},
		{Name: "Scissors", Qty: 1},
		{ID: "z", Name: "Glue", Qty: 4},
	}
}

func TestCompute(t *testing.T) {
	changeset := Compute(existingSKUs(), updatedSKUs(), skuKey)

	// keyless additions come first, then by key
	assert.Equal(t, []sku{{Name: "Scissors", Qty: 1}, {ID: "z", Name: "Glue", Qty: 4}}, changeset.Added)
	assert.Equal(t, []sku{{ID: "b", Name: "Toner", Qty: 2, Note: "black"}}, changeset.Removed)

	require.Len(t, changeset.Updated, 1)
	update := changeset.Updated[0]
	assert.Equal(t, "a", update.ID)

	want := []FieldChange{
		{Path: "pricing.output", OldValue: "2", NewValue: "3", Type: ChangeTypeUpdate},
		{Path: "qty", OldValue: "1", NewValue: "5", Type: ChangeTypeUpdate},
	}
	if diff := cmp.Diff(want, update.Changes); diff != "" {
		t.Errorf("field changes mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, staging.Patch{
		"qty":     float64(5),
		"pricing": map[string]any{"input": float64(1), "output": float64(3)},
	}, update.Patch)

	assert.Equal(t, "Changeset: 2 added, 1 updated, 1 removed (Total: 4 changes)", changeset.String())
}

func TestComputeNoChanges(t *testing.T) {
	changeset := Compute(existingSKUs(), existingSKUs(), skuKey)
	assert.True(t, changeset.IsEmpty())
	assert.False(t, changeset.HasChanges())
	assert.Equal(t, "No changes detected", changeset.String())
	assert.True(t, changeset.Payload().IsEmpty())
}

func TestComputeFieldAddedAndDropped(t *testing.T) {
	existing := []sku{{ID: "b", Name: "Toner", Note: "black"}}
	updated := []sku{{ID: "b", Name: "Toner"}}

	changeset := Compute(existing, updated, skuKey)
	require.Len(t, changeset.Updated, 1)
	assert.Equal(t, []FieldChange{{Path: "note", OldValue: "black", Type: ChangeTypeRemove}}, changeset.Updated[0].Changes)
	assert.Equal(t, staging.Patch{"note": nil}, changeset.Updated[0].Patch)

	reverse := Compute(updated, existing, skuKey)
	require.Len(t, reverse.Updated, 1)
	assert.Equal(t, []FieldChange{{Path: "note", NewValue: "black", Type: ChangeTypeAdd}}, reverse.Updated[0].Changes)
}

func TestComputeOptions(t *testing.T) {
	t.Run("ignored fields", func(t *testing.T) {
		changeset := Compute(existingSKUs(), updatedSKUs(), skuKey, WithIgnoredFields("qty", "pricing.output"))
		assert.Empty(t, changeset.Updated)
	})

	t.Run("shallow comparison", func(t *testing.T) {
		changeset := Compute(existingSKUs(), updatedSKUs(), skuKey, WithDeepComparison(false), WithIgnoredFields("qty"))
		require.Len(t, changeset.Updated, 1)
		changes := changeset.Updated[0].Changes
		require.Len(t, changes, 1)
		assert.Equal(t, "pricing", changes[0].Path)
	})
}

func TestComputeRepeatedKeysAreAdditions(t *testing.T) {
	changeset := Compute(
		[]sku{{ID: "a", Name: "Paper"}},
		[]sku{{ID: "a", Name: "Paper"}, {ID: "a", Name: "Paper copy"}},
		skuKey,
	)
	assert.Empty(t, changeset.Updated)
	assert.Empty(t, changeset.Removed)
	assert.Equal(t, []sku{{ID: "a", Name: "Paper copy"}}, changeset.Added)
}

func TestComputeMaps(t *testing.T) {
	key := func(m map[string]any) string { s, _ := m["id"].(string); return s }
	existing := []map[string]any{{"id": "a", "qty": 1}}
	updated := []map[string]any{{"id": "a", "qty": 1.0, "unit": "box"}}

	changeset := Compute(existing, updated, key)
	require.Len(t, changeset.Updated, 1)
	assert.Equal(t, []FieldChange{{Path: "unit", NewValue: "box", Type: ChangeTypeAdd}}, changeset.Updated[0].Changes)
}

func TestIgnoredNestedFieldsStayOutOfPatch(t *testing.T) {
	key := func(m map[string]any) string { s, _ := m["id"].(string); return s }
	existing := []map[string]any{{"id": "a", "meta": map[string]any{"name": "x", "updated_at": "t1", "tags": map[string]any{"color": "red", "seen": "d1"}}}}
	updated := []map[string]any{{"id": "a", "meta": map[string]any{"name": "y", "updated_at": "t2", "tags": map[string]any{"color": "red", "seen": "d2"}, "extra": 1}}}

	changeset := Compute(existing, updated, key, WithIgnoredFields("meta.updated_at", "meta.tags.seen"))
	require.Len(t, changeset.Updated, 1)
	update := changeset.Updated[0]

	assert.Equal(t, []FieldChange{
		{Path: "meta.extra", NewValue: "1", Type: ChangeTypeAdd},
		{Path: "meta.name", OldValue: "x", NewValue: "y", Type: ChangeTypeUpdate},
	}, update.Changes)
	assert.Equal(t, staging.Patch{"meta": map[string]any{
		"name":       "y",
		"updated_at": "t1",
		"tags":       map[string]any{"color": "red", "seen": "d1"},
		"extra":      1,
	}}, update.Patch)

	onlyIgnored := []map[string]any{{"id": "a", "meta": map[string]any{"name": "x", "updated_at": "t9", "tags": map[string]any{"color": "red", "seen": "d1"}}}}
	assert.Empty(t, Compute(existing, onlyIgnored, key, WithIgnoredFields("meta.updated_at")).Updated)
}

func TestLargeIntegersCompareExactly(t *testing.T) {
	key := func(m map[string]any) string { s, _ := m["id"].(string); return s }
	existing := []map[string]any{{"id": "a", "n": uint64(9007199254740992), "m": int64(-9007199254740993), "q": 3}}
	updated := []map[string]any{{"id": "a", "n": uint64(9007199254740993), "m": int64(-9007199254740992), "q": 3.0}}

	changeset := Compute(existing, updated, key)
	require.Len(t, changeset.Updated, 1)
	assert.Equal(t, staging.Patch{"n": uint64(9007199254740993), "m": int64(-9007199254740992)}, changeset.Updated[0].Patch)

	assert.True(t, valuesEqual(int64(7), uint64(7)))
	assert.False(t, valuesEqual(int64(-1), uint64(18446744073709551615)))
	assert.True(t, valuesEqual(int(2), 2.0))
	assert.False(t, valuesEqual(int64(9007199254740993), int64(9007199254740992)))
}

// TestStageRoundTrip checks that staging a changeset onto an engine over the
// existing list yields the changeset's own payload.
func TestStageRoundTrip(t *testing.T) {
	changeset := Compute(existingSKUs(), updatedSKUs(), skuKey)

	engine, err := staging.New(existingSKUs(), skuKey, staging.WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)
	require.NoError(t, changeset.Stage(engine))

	want, err := json.Marshal(changeset.Payload())
	require.NoError(t, err)
	got, err := json.Marshal(engine.Payload())
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))

	visible := engine.Visible()
	byID := map[string]sku{}
	for _, item := range visible {
		byID[item.Entity.ID] = item.Entity
	}
	assert.Equal(t, 5, byID["a"].Qty)
	assert.InDelta(t, 3.0, byID["a"].Pricing.Output, 0.0001)
	assert.NotContains(t, byID, "b")
}

func TestFilter(t *testing.T) {
	changeset := Compute(existingSKUs(), updatedSKUs(), skuKey)

	additive := changeset.Filter(staging.ApplyAdditive)
	assert.Len(t, additive.Added, 2)
	assert.Len(t, additive.Updated, 1)
	assert.Empty(t, additive.Removed)

	assert.Equal(t, 1, changeset.Filter(staging.ApplyUpdatesOnly).Len())
	assert.Equal(t, 2, changeset.Filter(staging.ApplyAdditionsOnly).Len())
	assert.Same(t, changeset, changeset.Filter(staging.ApplyAll))
}

func TestPrint(t *testing.T) {
	changeset := Compute(existingSKUs(), updatedSKUs(), skuKey)

	var buf bytes.Buffer
	changeset.Print(&buf)
	out := buf.String()

	assert.Contains(t, out, "Added (2)")
	assert.Contains(t, out, "(new)")
	assert.Contains(t, out, "~ qty: 1 → 5")
	assert.Contains(t, out, "Removed (1)")
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
}
