// Package selectcmd implements the select commands, which compute the
// difference between an initial and a current selection of ids.
package selectcmd

import (
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/agentstation/stagehand/internal/appcontext"
	"github.com/agentstation/stagehand/internal/cmd/output"
	"github.com/agentstation/stagehand/pkg/errors"
	"github.com/agentstation/stagehand/pkg/selection"
)

// NewCommand creates the select command with its subcommands.
func NewCommand(app appcontext.Interface) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "select",
		GroupID: "selection",
		Short:   "Compute selection changes",
		Long: `Select compares a selection of ids against the initial one and prints
which ids were added and which were removed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newDiffCommand(app))
	cmd.AddCommand(newTreeCommand(app))
	return cmd
}

func newDiffCommand(app appcontext.Interface) *cobra.Command {
	var initial, selected, toggle []string
	cmd := &cobra.Command{
		Use:   "diff --initial IDS [--selected IDS] [--toggle IDS]",
		Short: "Diff a flat selection",
		Example: `  stagehand select diff --initial a,b --selected b,c
  stagehand select diff --initial a,b --toggle a --toggle d`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set := selection.New(initial)
			if cmd.Flags().Changed("selected") {
				set.SetMany(initial, false)
				set.SetMany(selected, true)
			}
			for _, id := range toggle {
				set.Toggle(id)
			}

			diff := set.Diff()
			return output.Print(cmd.OutOrStdout(), app.OutputFormat(), diff, func() output.Data {
				return output.SelectionDiff(diff)
			})
		},
	}
	cmd.Flags().StringSliceVar(&initial, "initial", nil, "ids selected initially")
	cmd.Flags().StringSliceVar(&selected, "selected", nil, "ids selected now")
	cmd.Flags().StringSliceVar(&toggle, "toggle", nil, "ids to toggle, applied in order")
	return cmd
}

// treeNode is one row of the tree output.
type treeNode struct {
	ID    string          `json:"id" yaml:"id"`
	Label string          `json:"label,omitempty" yaml:"label,omitempty"`
	Depth int             `json:"depth" yaml:"depth"`
	State selection.State `json:"state" yaml:"state"`
}

type treeResult struct {
	Nodes []treeNode             `json:"nodes" yaml:"nodes"`
	Diff  selection.Diff[string] `json:"diff" yaml:"diff"`
}

func newTreeCommand(app appcontext.Interface) *cobra.Command {
	var nodesFile string
	var initial, toggle []string
	cmd := &cobra.Command{
		Use:   "tree --nodes FILE [--initial IDS] [--toggle IDS]",
		Short: "Diff a hierarchical selection",
		Long: `Tree loads a hierarchy from a YAML or JSON list of {id, parent, label}
nodes. Only leaves hold selection state; toggling a group selects all leaves
below it, or clears them when the group is fully checked. The output shows
each node with its derived state and the leaf-level diff.`,
		Example: `  stagehand select tree --nodes menu.yaml --initial espresso --toggle drinks`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			nodes, err := loadNodes(nodesFile)
			if err != nil {
				return err
			}
			tree, err := selection.NewTree(nodes, initial)
			if err != nil {
				return err
			}
			for _, id := range toggle {
				if err := tree.Toggle(id); err != nil {
					return err
				}
			}

			result := treeResult{Nodes: walk(tree), Diff: tree.Diff()}
			return output.Print(cmd.OutOrStdout(), app.OutputFormat(), result, func() output.Data {
				return treeTable(result)
			})
		},
	}
	cmd.Flags().StringVar(&nodesFile, "nodes", "", "YAML or JSON file with the hierarchy (required)")
	cmd.Flags().StringSliceVar(&initial, "initial", nil, "leaf ids selected initially")
	cmd.Flags().StringSliceVar(&toggle, "toggle", nil, "node ids to toggle, applied in order")
	_ = cmd.MarkFlagRequired("nodes")
	return cmd
}

func loadNodes(path string) ([]selection.Node[string], error) {
	data, err := os.ReadFile(path) //nolint:gosec // caller chooses the file
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	var nodes []selection.Node[string]
	if err := yaml.Unmarshal(data, &nodes); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	return nodes, nil
}

// walk lists the nodes depth first in declaration order.
func walk(tree *selection.Tree[string]) []treeNode {
	var out []treeNode
	var visit func(id string, depth int)
	visit = func(id string, depth int) {
		node, _ := tree.Node(id)
		state, _ := tree.State(id)
		out = append(out, treeNode{ID: id, Label: node.Label, Depth: depth, State: state})
		children, _ := tree.Children(id)
		for _, child := range children {
			visit(child, depth+1)
		}
	}
	for _, root := range tree.Roots() {
		visit(root, 0)
	}
	return out
}

func treeTable(result treeResult) output.Data {
	data := output.Data{Headers: []string{"Node", "State"}}
	for _, n := range result.Nodes {
		name := n.ID
		if n.Label != "" {
			name = n.Label + " (" + n.ID + ")"
		}
		data.Rows = append(data.Rows, []string{strings.Repeat("  ", n.Depth) + name, stateMark(n.State)})
	}
	return data
}

func stateMark(s selection.State) string {
	switch s {
	case selection.Checked:
		return "[x] checked"
	case selection.Indeterminate:
		return "[-] partial"
	default:
		return "[ ] unchecked"
	}
}
