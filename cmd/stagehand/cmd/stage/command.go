// Package stage implements the commands that stage additions, updates and
// removals in a session.
package stage

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/stagehand/internal/appcontext"
	"github.com/agentstation/stagehand/internal/cmd/cmdutil"
	"github.com/agentstation/stagehand/pkg/differ"
	"github.com/agentstation/stagehand/pkg/errors"
	"github.com/agentstation/stagehand/pkg/record"
	"github.com/agentstation/stagehand/pkg/staging"
)

// NewCommand creates the stage command with its subcommands.
func NewCommand(app appcontext.Interface) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "stage",
		GroupID: "staging",
		Short:   "Stage changes in a session",
		Long: `Stage records additions, field updates and removals against the session
baseline without touching the backend. Nothing is sent until submit.`,
		Example: `  stagehand stage add orders --set name=Widget --set qty=3
  stagehand stage update orders A --set qty=5 --set note=null
  stagehand stage remove orders B C
  stagehand stage restore orders B
  stagehand stage reset orders`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newAddCommand(app))
	cmd.AddCommand(newUpdateCommand(app))
	cmd.AddCommand(newRemoveCommand(app))
	cmd.AddCommand(newRestoreCommand(app))
	cmd.AddCommand(newDiscardCommand(app))
	cmd.AddCommand(newResetCommand(app))
	cmd.AddCommand(newImportCommand(app))
	return cmd
}

func newAddCommand(app appcontext.Interface) *cobra.Command {
	var assignments []string
	cmd := &cobra.Command{
		Use:   "add SESSION --set key=value...",
		Short: "Stage a new item",
		Long: `Add stages a new item built from the --set assignments. Items without an
id, or whose id is already taken, get a temporary id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := cmdutil.Patch(assignments)
			if err != nil {
				return err
			}
			if len(patch) == 0 {
				return errors.NewValidationError("set", nil, "an addition needs at least one field")
			}

			ws, err := cmdutil.Open(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			id := ws.Engine.StageAdd(record.Record{}.ApplyPatch(patch))
			if err := ws.Save(cmd.Context()); err != nil {
				return err
			}
			app.Alerts().Success("Staged addition %s", id)
			return nil
		},
	}
	cmdutil.AddSetFlag(cmd, &assignments)
	return cmd
}

func newUpdateCommand(app appcontext.Interface) *cobra.Command {
	var assignments []string
	cmd := &cobra.Command{
		Use:   "update SESSION ID --set key=value...",
		Short: "Stage field changes for an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := cmdutil.Patch(assignments)
			if err != nil {
				return err
			}
			if len(patch) == 0 {
				app.Alerts().Info("Nothing to update")
				return nil
			}

			ws, err := cmdutil.Open(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			if err := ws.Engine.StageUpdate(args[1], patch); err != nil {
				return err
			}
			if err := ws.Save(cmd.Context()); err != nil {
				return err
			}
			app.Alerts().Success("Staged update for %s", args[1])
			return nil
		},
	}
	cmdutil.AddSetFlag(cmd, &assignments)
	return cmd
}

// idCommand builds a command that applies op to every id argument and
// saves the session once all of them succeeded.
func idCommand(app appcontext.Interface, use, short, done string, op func(*staging.Engine[string, record.Record], string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " SESSION ID...",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := cmdutil.Open(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			for _, id := range args[1:] {
				if err := op(ws.Engine, id); err != nil {
					return err
				}
			}
			if err := ws.Save(cmd.Context()); err != nil {
				return err
			}
			for _, id := range args[1:] {
				app.Alerts().Success("%s %s", done, id)
			}
			return nil
		},
	}
}

func newRemoveCommand(app appcontext.Interface) *cobra.Command {
	cmd := idCommand(app, "remove", "Stage items for removal", "Staged removal of",
		(*staging.Engine[string, record.Record]).StageRemove)
	cmd.Aliases = []string{"rm"}
	cmd.Long = `Remove stages baseline items for removal and drops any update staged for
them. Removing a pending addition simply discards it.`
	return cmd
}

func newRestoreCommand(app appcontext.Interface) *cobra.Command {
	return idCommand(app, "restore", "Undo staged removals", "Restored",
		(*staging.Engine[string, record.Record]).Restore)
}

func newDiscardCommand(app appcontext.Interface) *cobra.Command {
	return idCommand(app, "discard", "Drop every staged change for items", "Discarded changes to",
		(*staging.Engine[string, record.Record]).Discard)
}

func newResetCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:   "reset SESSION",
		Short: "Drop all staged changes of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := cmdutil.Open(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			dropped := ws.Engine.Payload().Len()
			ws.Engine.Reset()
			if err := ws.Save(cmd.Context()); err != nil {
				return err
			}
			app.Alerts().Success("Dropped %d staged changes", dropped)
			return nil
		},
	}
}

func newImportCommand(app appcontext.Interface) *cobra.Command {
	var ignore []string
	cmd := &cobra.Command{
		Use:   "import SESSION FILE",
		Short: "Stage the differences between the baseline and a file",
		Long: `Import compares the session baseline with an edited copy of the list and
stages every difference: new items as additions, changed fields as updates
and missing items as removals. The session must have nothing staged.`,
		Example: `  stagehand stage import orders orders-edited.yaml --ignore updated_at`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			edited, err := record.Load(args[1])
			if err != nil {
				return err
			}
			ws, err := cmdutil.Open(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			if ws.Engine.IsDirty() {
				return errors.NewValidationError("session", args[0], "session has staged changes; reset it first")
			}

			changes := differ.Compute(ws.Engine.Baseline(), edited, record.Key, differ.WithIgnoredFields(ignore...))
			if err := changes.Stage(ws.Engine); err != nil {
				return err
			}
			if err := ws.Save(cmd.Context()); err != nil {
				return err
			}
			app.Alerts().Success("Staged %d changes from %s", changes.Len(), args[1])
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&ignore, "ignore", nil, "fields to leave out of the comparison")
	return cmd
}
