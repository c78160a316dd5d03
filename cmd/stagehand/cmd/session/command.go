// Package session implements the session commands: create, list, delete
// and rebase draft sessions.
package session

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/agentstation/stagehand/internal/appcontext"
	"github.com/agentstation/stagehand/internal/cmd/cmdutil"
	"github.com/agentstation/stagehand/internal/cmd/output"
	"github.com/agentstation/stagehand/internal/drafts"
	"github.com/agentstation/stagehand/pkg/errors"
	"github.com/agentstation/stagehand/pkg/record"
)

// NewCommand creates the session command with its subcommands.
func NewCommand(app appcontext.Interface) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions"},
		GroupID: "sessions",
		Short:   "Manage draft sessions",
		Long: `A session holds a baseline list loaded from a file together with every
change staged against it. Sessions persist between invocations until they
are submitted or deleted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newCreateCommand(app))
	cmd.AddCommand(newListCommand(app))
	cmd.AddCommand(newDeleteCommand(app))
	cmd.AddCommand(newRebaseCommand(app))
	return cmd
}

func newCreateCommand(app appcontext.Interface) *cobra.Command {
	var baseline, endpoint string
	cmd := &cobra.Command{
		Use:   "new NAME --baseline FILE",
		Short: "Create a session from a baseline file",
		Example: `  stagehand session new orders --baseline orders.yaml
  stagehand session new users --baseline users.json --endpoint https://api.example.com/users`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := loadBaseline(cmd, baseline)
			if err != nil {
				return err
			}
			if endpoint == "" {
				endpoint = app.Remote().Endpoint
			}

			s, err := drafts.NewSession(args[0], endpoint, items)
			if err != nil {
				return err
			}
			// reject duplicate or empty ids before anything is stored
			if _, err := s.Engine(); err != nil {
				return err
			}

			store, err := app.Store()
			if err != nil {
				return err
			}
			if err := store.Create(cmd.Context(), s); err != nil {
				return err
			}

			app.Logger().Debug().Str("session", s.Name).Int("items", len(items)).Msg("Created session")
			app.Alerts().Success("Created session %s with %d items", s.Name, len(items))
			return nil
		},
	}
	cmd.Flags().StringVarP(&baseline, "baseline", "b", "", "YAML or JSON file with the baseline list, - for stdin (required)")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "backend URL the session submits to")
	_ = cmd.MarkFlagRequired("baseline")
	return cmd
}

func newListCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sessions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := app.Store()
			if err != nil {
				return err
			}
			sessions, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			return output.Print(cmd.OutOrStdout(), app.OutputFormat(), sessions, func() output.Data {
				return output.Sessions(sessions)
			})
		},
	}
}

func newDeleteCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "delete NAME...",
		Aliases: []string{"rm"},
		Short:   "Delete sessions and their staged changes",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.Store()
			if err != nil {
				return err
			}
			for _, name := range args {
				if err := store.Delete(cmd.Context(), name); err != nil {
					return err
				}
				app.Alerts().Success("Deleted session %s", name)
			}
			return nil
		},
	}
}

func newRebaseCommand(app appcontext.Interface) *cobra.Command {
	var baseline string
	var force bool
	cmd := &cobra.Command{
		Use:   "rebase NAME --baseline FILE",
		Short: "Replace the baseline of a session",
		Long: `Rebase replaces the session baseline with a fresh list, for example after
the backend changed. Staged changes are discarded, so a dirty session needs
--force.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := loadBaseline(cmd, baseline)
			if err != nil {
				return err
			}
			ws, err := cmdutil.Open(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			if ws.Engine.IsDirty() && !force {
				return errors.NewValidationError("force", false,
					ws.Engine.Payload().String()+"; use --force to discard them")
			}
			if err := ws.Engine.SetBaseline(items); err != nil {
				return err
			}
			if err := ws.Save(cmd.Context()); err != nil {
				return err
			}
			app.Alerts().Success("Rebased session %s onto %d items", args[0], len(items))
			return nil
		},
	}
	cmd.Flags().StringVarP(&baseline, "baseline", "b", "", "YAML or JSON file with the new baseline (required)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "discard staged changes")
	_ = cmd.MarkFlagRequired("baseline")
	return cmd
}

// loadBaseline reads records from path, or from stdin when path is "-".
func loadBaseline(cmd *cobra.Command, path string) ([]record.Record, error) {
	if path != "-" {
		return record.Load(path)
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, errors.WrapIO("read", "stdin", err)
	}
	return record.Parse(data, record.FormatYAML)
}
