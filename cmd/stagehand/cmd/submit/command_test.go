package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/stagehand/internal/appcontext"
	"github.com/agentstation/stagehand/internal/drafts"
	"github.com/agentstation/stagehand/pkg/errors"
	"github.com/agentstation/stagehand/pkg/record"
)

func seed(t *testing.T, app *appcontext.Mock, endpoint string) {
	t.Helper()
	s, err := drafts.NewSession("orders", endpoint, []record.Record{
		{"id": "A", "qty": 1},
		{"id": "B", "qty": 2},
	})
	require.NoError(t, err)
	engine, err := s.Engine()
	require.NoError(t, err)
	require.NoError(t, engine.StageRemove("B"))
	s.Capture(engine)

	store, err := app.Store()
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), s))
}

func execute(app appcontext.Interface, args ...string) (string, error) {
	cmd := NewCommand(app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSubmitSendsPayloadWithAuth(t *testing.T) {
	var gotAuth, gotMethod string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("X-API-Key")
		gotMethod = r.Method
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	app := &appcontext.Mock{}
	seed(t, app, "")

	_, err := execute(app, "orders", "--endpoint", server.URL, "--auth", "header:X-API-Key", "--token", "k-123", "-X", "patch")
	require.NoError(t, err)
	assert.Equal(t, "k-123", gotAuth)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, map[string]any{"remove": []any{map[string]any{"id": "B"}}}, gotBody)

	store, _ := app.Store()
	s, err := store.Load(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, server.URL, s.Endpoint, "endpoint is remembered")
	engine, err := s.Engine()
	require.NoError(t, err)
	assert.False(t, engine.IsDirty())
	assert.Equal(t, 2, engine.Counts().Baseline, "no list in the response keeps the old baseline")
}

func TestSubmitDryRun(t *testing.T) {
	app := &appcontext.Mock{}
	seed(t, app, "")

	out, err := execute(app, "orders", "--dry-run")
	require.NoError(t, err)
	assert.JSONEq(t, `{"remove": [{"id": "B"}]}`, out)
}

func TestSubmitNeedsEndpoint(t *testing.T) {
	app := &appcontext.Mock{}
	seed(t, app, "")

	_, err := execute(app, "orders")
	assert.True(t, errors.IsValidationError(err), "got %v", err)
}

func TestSubmitFallsBackToRemoteConfig(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[{"id": "A", "qty": 1}]`)
	}))
	defer server.Close()

	app := &appcontext.Mock{RemoteConfig: appcontext.Remote{
		Endpoint:   server.URL,
		Token:      "secret",
		AuthScheme: "bearer",
	}}
	seed(t, app, "")

	_, err := execute(app, "orders")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// nothing left to send
	_, err = execute(app, "orders")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
