// Package view implements the read-only session commands show and diff.
package view

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/agentstation/stagehand/internal/appcontext"
	"github.com/agentstation/stagehand/internal/cmd/cmdutil"
	"github.com/agentstation/stagehand/internal/cmd/output"
	"github.com/agentstation/stagehand/pkg/errors"
	"github.com/agentstation/stagehand/pkg/record"
	"github.com/agentstation/stagehand/pkg/staging"
)

var states = []staging.State{
	staging.StateUnchanged,
	staging.StateAdded,
	staging.StateUpdated,
}

var strategies = []staging.ApplyStrategy{
	staging.ApplyAll,
	staging.ApplyAdditive,
	staging.ApplyUpdatesOnly,
	staging.ApplyAdditionsOnly,
}

// NewShowCommand creates the show command.
func NewShowCommand(app appcontext.Interface) *cobra.Command {
	var only []string
	cmd := &cobra.Command{
		Use:     "show SESSION",
		GroupID: "staging",
		Short:   "Show the list as it looks with staged changes applied",
		Long: `Show prints the visible list of a session: baseline items minus staged
removals, with staged updates merged in and pending additions included.
Each item carries its state: unchanged, updated or added.`,
		Example: `  stagehand show orders
  stagehand show orders --state added,updated -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseStates(only)
			if err != nil {
				return err
			}
			ws, err := cmdutil.Open(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}

			items := ws.Engine.Visible()
			if len(filter) > 0 {
				items = slices.DeleteFunc(items, func(item staging.Item[string, record.Record]) bool {
					return !slices.Contains(filter, item.State)
				})
			}
			return output.Print(cmd.OutOrStdout(), app.OutputFormat(), items, func() output.Data {
				return output.Items(items)
			})
		},
	}
	cmd.Flags().StringSliceVar(&only, "state", nil, "only show items in these states: unchanged, added, updated")
	return cmd
}

func parseStates(values []string) ([]staging.State, error) {
	out := make([]staging.State, 0, len(values))
	for _, v := range values {
		s := staging.State(v)
		if !slices.Contains(states, s) {
			return nil, errors.NewValidationError("state", v, fmt.Sprintf("must be one of %v", states))
		}
		out = append(out, s)
	}
	return out, nil
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(app appcontext.Interface) *cobra.Command {
	var strategy string
	var summary bool
	cmd := &cobra.Command{
		Use:     "diff SESSION",
		GroupID: "staging",
		Short:   "Print the payload a submit would send",
		Long: `Diff prints the minimal payload describing every staged change: new items
under "add", changed fields under "update" and removed ids under "remove".
Empty buckets are omitted.`,
		Example: `  stagehand diff orders -o json
  stagehand diff orders --strategy additive
  stagehand diff orders --summary`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(strategies, staging.ApplyStrategy(strategy)) {
				return errors.NewValidationError("strategy", strategy, fmt.Sprintf("must be one of %v", strategies))
			}
			ws, err := cmdutil.Open(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}

			payload := ws.Engine.Payload().Filter(staging.ApplyStrategy(strategy))
			if summary {
				counts := ws.Engine.Counts()
				fmt.Fprintln(cmd.OutOrStdout(), payload.String())
				fmt.Fprintf(cmd.OutOrStdout(), "Items: %d baseline, %d visible\n", counts.Baseline, counts.Visible)
				return nil
			}
			return output.Print(cmd.OutOrStdout(), app.OutputFormat(), payload, func() output.Data {
				return output.Payload(payload)
			})
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", string(staging.ApplyAll),
		"buckets to include: all, additive, updates-only, additions-only")
	cmd.Flags().BoolVar(&summary, "summary", false, "print counts only")
	return cmd
}
