// Package cmdutil provides helpers shared by stagehand commands.
package cmdutil

import (
	"context"
	"slices"

	"github.com/spf13/cobra"

	"github.com/agentstation/stagehand/internal/appcontext"
	"github.com/agentstation/stagehand/internal/drafts"
	"github.com/agentstation/stagehand/pkg/logging"
	"github.com/agentstation/stagehand/pkg/record"
	"github.com/agentstation/stagehand/pkg/staging"
)

// Workspace is a loaded session with its rebuilt engine.
type Workspace struct {
	Store   drafts.Store
	Session drafts.Session
	Engine  *staging.Engine[string, record.Record]
}

// Open loads the named session and rebuilds its engine with the app's
// engine options and logger.
func Open(ctx context.Context, app appcontext.Interface, name string) (*Workspace, error) {
	store, err := app.Store()
	if err != nil {
		return nil, err
	}
	session, err := store.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	engine, err := session.Engine(EngineOptions(ctx, app, name)...)
	if err != nil {
		return nil, err
	}
	return &Workspace{Store: store, Session: session, Engine: engine}, nil
}

// EngineOptions returns the app's engine options plus a logger tagged with
// the session name.
func EngineOptions(ctx context.Context, app appcontext.Interface, session string) []staging.Option {
	ctx = logging.WithSession(logging.WithLogger(ctx, app.Logger()), session)
	return append(slices.Clip(app.EngineOptions()), staging.WithLogger(logging.FromContext(ctx)))
}

// Save captures the engine state and stores the session.
func (w *Workspace) Save(ctx context.Context) error {
	w.Session.Capture(w.Engine)
	return w.Store.Save(ctx, w.Session)
}

// AddSetFlag registers a repeatable --set key=value flag.
func AddSetFlag(cmd *cobra.Command, target *[]string) {
	cmd.Flags().StringArrayVarP(target, "set", "s", nil,
		"field assignment key=value (repeatable, value is read as YAML, null unsets)")
}

// Patch parses --set assignments.
func Patch(assignments []string) (staging.Patch, error) {
	return record.ParseAssignments(assignments)
}
