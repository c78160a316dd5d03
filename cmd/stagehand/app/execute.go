package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/stagehand/cmd/stagehand/cmd/compare"
	"github.com/agentstation/stagehand/cmd/stagehand/cmd/selectcmd"
	"github.com/agentstation/stagehand/cmd/stagehand/cmd/session"
	"github.com/agentstation/stagehand/cmd/stagehand/cmd/stage"
	"github.com/agentstation/stagehand/cmd/stagehand/cmd/submit"
	"github.com/agentstation/stagehand/cmd/stagehand/cmd/view"
	"github.com/agentstation/stagehand/internal/cmd/output"
)

// rootFlags holds the persistent flags of the root command.
type rootFlags struct {
	config   string
	verbose  bool
	quiet    bool
	noColor  bool
	format   string
	logLevel string
	dataDir  string
}

// Execute runs the stagehand CLI with the given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:     "stagehand",
		Short:   "Stage list changes and submit them in one request",
		Version: a.version,
		Long: `Stagehand keeps a baseline list of records and lets you stage additions,
field updates and removals against it. Staged changes persist in named
sessions until you submit them, at which point the minimal payload is sent
to the backend in a single request.

It can also diff selections of ids, including hierarchical selections with
checked, partial and unchecked groups, and compare two list files.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setupCommand(flags)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddGroup(&cobra.Group{ID: "sessions", Title: "Session Commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: "staging", Title: "Staging Commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: "selection", Title: "Comparison Commands:"})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.config, "config", "", "config file (default is $HOME/.stagehand.yaml)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	pf.BoolVarP(&flags.quiet, "quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	pf.BoolVar(&flags.noColor, "no-color", false, "disable colored output")
	pf.StringVarP(&flags.format, "format", "o", "", "output format: table, json, yaml")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")
	pf.StringVar(&flags.dataDir, "data-dir", "", "directory holding draft sessions (default ~/.stagehand/drafts)")

	rootCmd.SetVersionTemplate("stagehand {{.Version}}\n")
	a.registerCommands(rootCmd)
	return rootCmd
}

// setupCommand is called before any command runs. It reloads the config
// when --config was given and applies the flags on top.
func (a *App) setupCommand(flags *rootFlags) error {
	if _, err := output.ParseFormat(flags.format); err != nil {
		return err
	}
	if flags.config != "" {
		config, err := LoadConfig(flags.config)
		if err != nil {
			return err
		}
		a.config = config
	}
	a.config.UpdateFromFlags(flags)

	if _, err := output.ParseFormat(a.config.Format); err != nil {
		return err
	}
	if err := a.config.Validate(); err != nil {
		return err
	}

	logger := NewLogger(a.config)
	a.logger = &logger
	a.logger.Debug().Str("config", a.config.ConfigFile).Str("data_dir", a.config.DraftDir()).Msg("Configuration loaded")
	return nil
}

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Session commands
	rootCmd.AddCommand(session.NewCommand(a))

	// Staging commands
	rootCmd.AddCommand(stage.NewCommand(a))
	rootCmd.AddCommand(view.NewShowCommand(a))
	rootCmd.AddCommand(view.NewDiffCommand(a))
	rootCmd.AddCommand(submit.NewCommand(a))

	// Comparison commands
	rootCmd.AddCommand(selectcmd.NewCommand(a))
	rootCmd.AddCommand(compare.NewCommand(a))

	rootCmd.AddCommand(a.newVersionCommand())
}

func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("stagehand %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
			}
		},
	}
}

// ExitOnError prints an error and exits with status 1.
func ExitOnError(err error) {
	if err != nil {
		//nolint:errcheck // exiting anyway
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
