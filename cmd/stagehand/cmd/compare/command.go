// Package compare implements the compare command, which diffs two list
// files by id.
package compare

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/agentstation/stagehand/internal/appcontext"
	"github.com/agentstation/stagehand/internal/cmd/output"
	"github.com/agentstation/stagehand/pkg/differ"
	"github.com/agentstation/stagehand/pkg/errors"
	"github.com/agentstation/stagehand/pkg/record"
	"github.com/agentstation/stagehand/pkg/staging"
)

var strategies = []staging.ApplyStrategy{
	staging.ApplyAll,
	staging.ApplyAdditive,
	staging.ApplyUpdatesOnly,
	staging.ApplyAdditionsOnly,
}

// NewCommand creates the compare command.
func NewCommand(app appcontext.Interface) *cobra.Command {
	var ignore []string
	var strategy string
	var asPayload bool
	cmd := &cobra.Command{
		Use:     "compare OLD NEW",
		GroupID: "selection",
		Short:   "Compare two list files",
		Long: `Compare matches the items of two YAML or JSON lists by id and reports
which were added, updated or removed, down to the changed fields.
With --payload the result is printed as the payload that would turn OLD
into NEW.`,
		Example: `  stagehand compare before.yaml after.yaml
  stagehand compare before.json after.json --ignore updated_at --payload -o json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(strategies, staging.ApplyStrategy(strategy)) {
				return errors.NewValidationError("strategy", strategy, fmt.Sprintf("must be one of %v", strategies))
			}
			existing, err := record.Load(args[0])
			if err != nil {
				return err
			}
			updated, err := record.Load(args[1])
			if err != nil {
				return err
			}

			changes := differ.New(record.Key, differ.WithIgnoredFields(ignore...)).
				Compute(existing, updated).
				Filter(staging.ApplyStrategy(strategy))
			app.Logger().Debug().
				Int("existing", len(existing)).
				Int("updated", len(updated)).
				Int("changes", changes.Len()).
				Msg("Compared lists")

			format := app.OutputFormat()
			if asPayload {
				payload := changes.Payload()
				return output.Print(cmd.OutOrStdout(), format, payload, func() output.Data {
					return output.Payload(payload)
				})
			}
			if format == output.FormatTable || format == "" {
				changes.Print(cmd.OutOrStdout())
				return nil
			}
			return output.NewFormatter(format).Format(cmd.OutOrStdout(), changes)
		},
	}
	cmd.Flags().StringSliceVar(&ignore, "ignore", nil, "fields to leave out of the comparison")
	cmd.Flags().StringVar(&strategy, "strategy", string(staging.ApplyAll),
		"changes to include: all, additive, updates-only, additions-only")
	cmd.Flags().BoolVar(&asPayload, "payload", false, "print the changes as a payload")
	return cmd
}
