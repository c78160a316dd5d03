package staging_test

import (
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/stagehand/pkg/errors"
	"github.com/agentstation/stagehand/pkg/logging"
	"github.com/agentstation/stagehand/pkg/staging"
)

type lineItem struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Qty  int    `json:"qty"`
}

func lineItemKey(i lineItem) string { return i.ID }

func newLineEngine(t *testing.T, baseline []lineItem, opts ...staging.Option) *staging.Engine[string, lineItem] {
	t.Helper()
	opts = append([]staging.Option{staging.WithLogger(logging.NewNopLogger())}, opts...)
	engine, err := staging.New(baseline, lineItemKey, opts...)
	require.NoError(t, err)
	return engine
}

func twoItems() []lineItem {
	return []lineItem{{ID: "A", Qty: 1}, {ID: "B", Qty: 2}}
}

func entities(items []staging.Item[string, lineItem]) []lineItem {
	out := make([]lineItem, len(items))
	for i, item := range items {
		out[i] = item.Entity
	}
	return out
}

func TestNewRejectsBadBaseline(t *testing.T) {
	t.Run("duplicate ids", func(t *testing.T) {
		_, err := staging.New([]lineItem{{ID: "A"}, {ID: "A"}}, lineItemKey)
		require.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
		assert.Contains(t, err.Error(), "duplicate id A")
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := staging.New([]lineItem{{ID: "A"}, {Name: "no id"}}, lineItemKey)
		require.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("missing key accessor", func(t *testing.T) {
		_, err := staging.New[string, lineItem](nil, nil)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("unknown update mode", func(t *testing.T) {
		_, err := staging.New(twoItems(), lineItemKey, staging.WithUpdateMode("diff"))
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("baseline is copied", func(t *testing.T) {
		items := twoItems()
		engine := newLineEngine(t, items)
		items[0].Qty = 99
		assert.Equal(t, 1, engine.Visible()[0].Entity.Qty)
	})
}

func TestStageUpdateScenario(t *testing.T) {
	engine := newLineEngine(t, twoItems())

	require.NoError(t, engine.StageUpdate("A", staging.Patch{"qty": 5}))

	assert.Equal(t, []lineItem{{ID: "A", Qty: 5}, {ID: "B", Qty: 2}}, entities(engine.Visible()))
	assert.Equal(t, staging.StateUpdated, engine.Visible()[0].State)
	assert.Equal(t, staging.StateUnchanged, engine.Visible()[1].State)

	payload := engine.Payload()
	assert.Nil(t, payload.Add)
	assert.Nil(t, payload.Remove)
	require.Len(t, payload.Update, 1)
	assert.Equal(t, "A", payload.Update[0].ID)
	assert.Equal(t, staging.Patch{"qty": 5}, payload.Update[0].Fields)

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"update":[{"id":"A","qty":5}]}`, string(data))
}

func TestStageRemoveScenario(t *testing.T) {
	engine := newLineEngine(t, twoItems())

	require.NoError(t, engine.StageRemove("B"))

	assert.Equal(t, []lineItem{{ID: "A", Qty: 1}}, entities(engine.Visible()))
	data, err := json.Marshal(engine.Payload())
	require.NoError(t, err)
	assert.JSONEq(t, `{"remove":[{"id":"B"}]}`, string(data))

	// idempotent
	require.NoError(t, engine.StageRemove("B"))
	assert.Len(t, engine.Payload().Remove, 1)
}

func TestStageAddScenario(t *testing.T) {
	engine := newLineEngine(t, nil)

	first := engine.StageAdd(lineItem{Name: "X"})
	second := engine.StageAdd(lineItem{Name: "X"})
	assert.NotEqual(t, first, second)
	assert.Equal(t, "tmp-1", first)
	assert.Equal(t, "tmp-2", second)
	assert.Len(t, engine.Payload().Add, 2)

	require.NoError(t, engine.StageRemove(first))
	payload := engine.Payload()
	assert.Len(t, payload.Add, 1)
	assert.Nil(t, payload.Remove)

	visible := engine.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, second, visible[0].ID)
	assert.Equal(t, staging.StateAdded, visible[0].State)
}

func TestAddThenRemoveRollsBack(t *testing.T) {
	engine := newLineEngine(t, twoItems())
	require.NoError(t, engine.StageUpdate("A", staging.Patch{"qty": 3}))

	beforeVisible := engine.Visible()
	beforePayload := engine.Payload()

	id := engine.StageAdd(lineItem{Name: "temp"})
	require.NoError(t, engine.StageRemove(id))

	assert.Equal(t, beforeVisible, engine.Visible())
	if diff := cmp.Diff(beforePayload, engine.Payload()); diff != "" {
		t.Errorf("payload changed after add/remove rollback (-before +after):\n%s", diff)
	}
}

func TestUpdatesMergeLastWriteWins(t *testing.T) {
	engine := newLineEngine(t, twoItems())

	require.NoError(t, engine.StageUpdate("A", staging.Patch{"qty": 5, "name": "Paper"}))
	require.NoError(t, engine.StageUpdate("A", staging.Patch{"qty": 7}))

	payload := engine.Payload()
	require.Len(t, payload.Update, 1)
	assert.Equal(t, staging.Patch{"qty": 7, "name": "Paper"}, payload.Update[0].Fields)

	item, ok := engine.Get("A")
	require.True(t, ok)
	assert.Equal(t, lineItem{ID: "A", Name: "Paper", Qty: 7}, item.Entity)
}

func TestRemoveSupersedesUpdate(t *testing.T) {
	engine := newLineEngine(t, twoItems())

	require.NoError(t, engine.StageUpdate("A", staging.Patch{"qty": 5}))
	require.NoError(t, engine.StageRemove("A"))

	payload := engine.Payload()
	assert.Nil(t, payload.Update)
	assert.Equal(t, []string{"A"}, payload.RemovedIDs())

	state, ok := engine.StateOf("A")
	require.True(t, ok)
	assert.Equal(t, staging.StateRemoved, state)

	// a removed item is no longer addressable for updates
	err := engine.StageUpdate("A", staging.Patch{"qty": 6})
	assert.True(t, errors.IsNotFound(err))
}

func TestRestoreAndDiscard(t *testing.T) {
	engine := newLineEngine(t, twoItems())

	require.NoError(t, engine.StageRemove("A"))
	require.NoError(t, engine.Restore("A"))
	assert.False(t, engine.IsDirty())
	assert.True(t, errors.IsNotFound(engine.Restore("A")))

	require.NoError(t, engine.StageUpdate("B", staging.Patch{"qty": 9}))
	require.NoError(t, engine.Discard("B"))
	assert.False(t, engine.IsDirty())

	id := engine.StageAdd(lineItem{Name: "new"})
	require.NoError(t, engine.Discard(id))
	assert.False(t, engine.IsDirty())

	assert.True(t, errors.IsNotFound(engine.Discard("nope")))
}

func TestUpdatePendingAdditionInPlace(t *testing.T) {
	engine := newLineEngine(t, twoItems())

	id := engine.StageAdd(lineItem{Name: "Toner", Qty: 1})
	require.NoError(t, engine.StageUpdate(id, staging.Patch{"qty": "4"}))

	payload := engine.Payload()
	assert.Equal(t, []lineItem{{Name: "Toner", Qty: 4}}, payload.Add)
	assert.Nil(t, payload.Update)
}

func TestUnknownIDs(t *testing.T) {
	engine := newLineEngine(t, twoItems())

	err := engine.StageUpdate("Z", staging.Patch{"qty": 1})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	err = engine.StageRemove("Z")
	assert.True(t, errors.IsNotFound(err))

	_, ok := engine.StateOf("Z")
	assert.False(t, ok)
	assert.False(t, engine.IsDirty())
}

func TestStageUpdateRejectsBadPatches(t *testing.T) {
	engine := newLineEngine(t, twoItems())

	err := engine.StageUpdate("A", staging.Patch{"qty": "many"})
	assert.True(t, errors.IsValidationError(err))

	err = engine.StageUpdate("A", staging.Patch{"id": "C"})
	assert.True(t, errors.IsValidationError(err))

	assert.False(t, engine.IsDirty(), "rejected patches must not be staged")

	require.NoError(t, engine.StageUpdate("A", nil))
	assert.False(t, engine.IsDirty())
}

func TestStageAddAssignsTempIDOnCollision(t *testing.T) {
	engine := newLineEngine(t, twoItems())

	kept := engine.StageAdd(lineItem{ID: "client-1", Name: "supplied"})
	assert.Equal(t, "client-1", kept)

	reassigned := engine.StageAdd(lineItem{ID: "A", Name: "collides"})
	assert.Equal(t, "tmp-1", reassigned)

	again := engine.StageAdd(lineItem{ID: "client-1"})
	assert.Equal(t, "tmp-2", again)

	payload := engine.Payload()
	require.Len(t, payload.Add, 3)
	for _, added := range payload.Add {
		assert.NotEqual(t, "A", added.ID, "a colliding id is never posted")
	}
	assert.Equal(t, []lineItem{{ID: "client-1", Name: "supplied"}, {Name: "collides"}, {}}, payload.Add)

	item, ok := engine.Get(reassigned)
	require.True(t, ok)
	assert.Equal(t, "collides", item.Entity.Name)
}

func TestUpdatePendingAdditionCannotTakeKnownID(t *testing.T) {
	engine := newLineEngine(t, twoItems())
	id := engine.StageAdd(lineItem{Name: "Toner"})
	other := engine.StageAdd(lineItem{ID: "client-1"})

	err := engine.StageUpdate(id, staging.Patch{"id": "B"})
	assert.True(t, errors.IsValidationError(err), "got %v", err)
	err = engine.StageUpdate(id, staging.Patch{"id": other})
	assert.True(t, errors.IsValidationError(err), "got %v", err)

	require.NoError(t, engine.StageUpdate(id, staging.Patch{"id": "client-2"}))
	assert.Equal(t, []lineItem{{ID: "client-2", Name: "Toner"}, {ID: "client-1"}}, engine.Payload().Add)
}

func TestGeneratorCollisionsAreSkipped(t *testing.T) {
	seq := []string{"A", "", "B", "fresh"}
	gen := staging.GeneratorFunc[string](func() string {
		id := seq[0]
		seq = seq[1:]
		return id
	})

	engine := newLineEngine(t, twoItems(), staging.WithIDGenerator[string](gen))
	assert.Equal(t, "fresh", engine.StageAdd(lineItem{}))
}

func TestUUIDGenerator(t *testing.T) {
	engine := newLineEngine(t, nil, staging.WithIDGenerator(staging.UUIDs()))

	a := engine.StageAdd(lineItem{})
	b := engine.StageAdd(lineItem{})
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestAddedPosition(t *testing.T) {
	t.Run("prepend newest first", func(t *testing.T) {
		engine := newLineEngine(t, twoItems())
		first := engine.StageAdd(lineItem{Name: "one"})
		second := engine.StageAdd(lineItem{Name: "two"})

		visible := engine.Visible()
		require.Len(t, visible, 4)
		assert.Equal(t, []string{second, first, "A", "B"}, ids(visible))
	})

	t.Run("append in staging order", func(t *testing.T) {
		engine := newLineEngine(t, twoItems(), staging.WithAddedPosition(staging.Append))
		first := engine.StageAdd(lineItem{Name: "one"})
		second := engine.StageAdd(lineItem{Name: "two"})

		assert.Equal(t, []string{"A", "B", first, second}, ids(engine.Visible()))
	})
}

func ids(items []staging.Item[string, lineItem]) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestResetAndSetBaseline(t *testing.T) {
	engine := newLineEngine(t, twoItems())

	engine.StageAdd(lineItem{Name: "X"})
	require.NoError(t, engine.StageUpdate("A", staging.Patch{"qty": 5}))
	require.NoError(t, engine.StageRemove("B"))
	assert.True(t, engine.IsDirty())

	engine.Reset()
	assert.False(t, engine.IsDirty())
	assert.Equal(t, twoItems(), engine.Baseline())
	// counter restarts after reset
	assert.Equal(t, "tmp-1", engine.StageAdd(lineItem{}))

	err := engine.SetBaseline([]lineItem{{ID: "C"}, {ID: "C"}})
	require.Error(t, err)
	assert.True(t, engine.IsDirty(), "failed rebase must leave staged state untouched")

	require.NoError(t, engine.SetBaseline([]lineItem{{ID: "C", Qty: 3}}))
	assert.False(t, engine.IsDirty())
	assert.Equal(t, []lineItem{{ID: "C", Qty: 3}}, entities(engine.Visible()))
	assert.Equal(t, staging.Counts{Baseline: 1, Visible: 1}, engine.Counts())
}

func TestPayloadIsStableAcrossRetries(t *testing.T) {
	engine := newLineEngine(t, twoItems())
	engine.StageAdd(lineItem{Name: "X"})
	require.NoError(t, engine.StageUpdate("B", staging.Patch{"qty": 8}))
	require.NoError(t, engine.StageRemove("A"))

	first, err := json.Marshal(engine.Payload())
	require.NoError(t, err)
	second, err := json.Marshal(engine.Payload())
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestFullUpdateMode(t *testing.T) {
	engine := newLineEngine(t, []lineItem{{ID: "A", Name: "Paper", Qty: 1}}, staging.WithUpdateMode(staging.UpdateFull))

	require.NoError(t, engine.StageUpdate("A", staging.Patch{"qty": 5}))

	data, err := json.Marshal(engine.Payload())
	require.NoError(t, err)
	assert.JSONEq(t, `{"update":[{"id":"A","name":"Paper","qty":5}]}`, string(data))
}

func TestCounts(t *testing.T) {
	engine := newLineEngine(t, twoItems())
	engine.StageAdd(lineItem{Name: "X"})
	require.NoError(t, engine.StageUpdate("A", staging.Patch{"qty": 5}))
	require.NoError(t, engine.StageRemove("B"))

	assert.Equal(t, staging.Counts{Baseline: 2, Visible: 2, Added: 1, Updated: 1, Removed: 1}, engine.Counts())
	assert.Equal(t, "Payload: 1 added, 1 updated, 1 removed (Total: 3 changes)", engine.Payload().String())
}

func TestNumericKeys(t *testing.T) {
	type location struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	engine, err := staging.New([]location{{ID: 1, Name: "Main store"}}, func(l location) int64 { return l.ID })
	require.NoError(t, err)

	assert.Equal(t, int64(-1), engine.StageAdd(location{Name: "Annex"}))
	assert.Equal(t, int64(-2), engine.StageAdd(location{Name: "Depot"}))
	require.NoError(t, engine.StageUpdate(1, staging.Patch{"name": "HQ"}))

	data, err := json.Marshal(engine.Payload())
	require.NoError(t, err)
	assert.JSONEq(t, `{"add":[{"id":0,"name":"Annex"},{"id":0,"name":"Depot"}],"update":[{"id":1,"name":"HQ"}]}`, string(data))
}

func TestUnsignedKeysNeedGenerator(t *testing.T) {
	_, err := staging.New([]uint{1}, func(u uint) uint { return u })
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	next := uint(100)
	engine, err := staging.New([]uint{1}, func(u uint) uint { return u },
		staging.WithIDGenerator[uint](staging.GeneratorFunc[uint](func() uint { next++; return next })))
	require.NoError(t, err)
	assert.Equal(t, uint(101), engine.StageAdd(0))
}

func TestMismatchedGenerator(t *testing.T) {
	_, err := staging.New(twoItems(), lineItemKey, staging.WithIDGenerator[int](&staging.Counter[int]{}))
	assert.True(t, errors.IsValidationError(err))
}

func TestEngineLogsOperations(t *testing.T) {
	tl := logging.NewTestLogger(t)
	engine, err := staging.New(twoItems(), lineItemKey, staging.WithLogger(tl.Logger))
	require.NoError(t, err)

	require.NoError(t, engine.StageUpdate("A", staging.Patch{"qty": 5}))
	require.NoError(t, engine.StageRemove("B"))
	require.NoError(t, engine.Discard("A"))
	require.NoError(t, engine.Discard(engine.StageAdd(lineItem{Name: "X"})))

	assert.True(t, tl.ContainsAll(`"operation":"stage_update"`, `"operation":"stage_remove"`, `"id":"B"`))

	var discards []any
	for _, entry := range tl.Entries() {
		if entry["operation"] == "discard" {
			discards = append(discards, entry["id"])
		}
	}
	assert.Equal(t, []any{"A", "tmp-1"}, discards)
}

// TestDirtyMatchesPayload drives random operation sequences and checks the
// dirty flag against the payload after every step.
func TestDirtyMatchesPayload(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	baseline := []lineItem{{ID: "A", Qty: 1}, {ID: "B", Qty: 2}, {ID: "C", Qty: 3}}

	for run := 0; run < 50; run++ {
		engine := newLineEngine(t, baseline)
		var known []string
		for _, item := range baseline {
			known = append(known, item.ID)
		}

		for step := 0; step < 40; step++ {
			id := known[rng.IntN(len(known))]
			switch rng.IntN(6) {
			case 0:
				known = append(known, engine.StageAdd(lineItem{Name: "n"}))
			case 1, 2:
				_ = engine.StageUpdate(id, staging.Patch{"qty": rng.IntN(10)})
			case 3:
				_ = engine.StageRemove(id)
			case 4:
				_ = engine.Restore(id)
			case 5:
				if rng.IntN(5) == 0 {
					engine.Reset()
				}
			}

			payload := engine.Payload()
			require.Equal(t, !payload.IsEmpty(), engine.IsDirty(), "run %d step %d", run, step)

			for _, u := range payload.Update {
				assert.NotContains(t, payload.RemovedIDs(), u.ID, "id both updated and removed")
			}
			counts := engine.Counts()
			require.Len(t, engine.Visible(), counts.Visible)
		}
	}
}
