package app

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/racesync/internal/cmd/output"
	"github.com/agentstation/racesync/pkg/store"
)

// Execute runs the racesync CLI application with the given arguments.
// This is the main entry point called from main.go.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "racesync",
		Short:   "Race event reconciliation CLI",
		Version: a.version,
		Long: `Racesync merges race events and their distance variants collected from
several sources into one stored record per event.

Values are weighed by source authority, numeric disagreement is settled by
consensus, missing fields are inferred, and fields fixed by hand are never
overwritten by later syncs.`,
		PersistentPreRunE:  a.setupCommand,
		PersistentPostRunE: a.finishCommand,
		SilenceUsage:       true,
		SilenceErrors:      true,
	}

	rootCmd.AddGroup(&cobra.Group{
		ID:    "core",
		Title: "Core Commands:",
	})

	rootCmd.AddGroup(&cobra.Group{
		ID:    "management",
		Title: "Management Commands:",
	})

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.racesync.yaml)")
	flags.BoolP("verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	flags.BoolP("quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	flags.Bool("no-color", false, "disable colored output")
	flags.StringP("format", "o", "", "output format: table, json, yaml, wide")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")
	flags.String("store", "", "store driver: "+strings.Join(store.Drivers(), ", "))
	flags.String("dsn", "", "store connection string (sqlite path or postgres URL)")
	flags.String("dir", "", "records directory for the files store")
	flags.String("metrics-textfile", "", "write metrics in the textfile exposition format to this path")

	rootCmd.SetVersionTemplate("racesync {{.Version}}\n")
	if a.out != nil {
		rootCmd.SetOut(a.out)
	}

	a.registerCommands(rootCmd)

	return rootCmd
}

// setupCommand is called before any command runs.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	// An explicit config file replaces the one loaded at startup
	if path := mustGetString(cmd, "config"); path != "" {
		config, err := LoadConfig(path)
		if err != nil {
			return err
		}
		a.config = config
	}

	a.config.UpdateFromFlags(
		mustGetBool(cmd, "verbose"),
		mustGetBool(cmd, "quiet"),
		mustGetBool(cmd, "no-color"),
		mustGetString(cmd, "format"),
		mustGetString(cmd, "log-level"),
	)
	if _, err := output.ParseFormat(a.config.Format); err != nil {
		return err
	}

	if driver := mustGetString(cmd, "store"); driver != "" {
		a.config.Store.Driver = driver
	}
	if dsn := mustGetString(cmd, "dsn"); dsn != "" {
		a.config.Store.DSN = dsn
	}
	if dir := mustGetString(cmd, "dir"); dir != "" {
		a.config.Store.Dir = dir
	}
	if path := mustGetString(cmd, "metrics-textfile"); path != "" {
		a.config.MetricsTextfile = path
	}

	// Reinitialize logger with updated config
	logger := NewLogger(a.config)
	a.logger = &logger

	return nil
}

// finishCommand runs after a command succeeds.
func (a *App) finishCommand(_ *cobra.Command, _ []string) error {
	return a.WriteMetrics()
}

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(a.CreateSyncCommand())
	rootCmd.AddCommand(a.CreateShowCommand())
	rootCmd.AddCommand(a.CreateListCommand())

	// Management commands
	rootCmd.AddCommand(a.CreateImportCommand())

	// Utility commands
	rootCmd.AddCommand(a.CreateVersionCommand())
}

// ExitOnError is a helper that prints an error and exits with status 1.
// This is meant to be used in main.go for top-level error handling.
func ExitOnError(err error) {
	if err != nil {
		//nolint:errcheck // Ignoring write error since we're exiting anyway
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

// mustGetBool retrieves a boolean flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}

// mustGetString retrieves a string flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}
