package app

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/agentstation/racesync/cmd/racesync/cmd/imports"
	"github.com/agentstation/racesync/cmd/racesync/cmd/list"
	"github.com/agentstation/racesync/cmd/racesync/cmd/show"
	"github.com/agentstation/racesync/cmd/racesync/cmd/sync"
)

// CreateSyncCommand creates the sync command with app dependencies.
func (a *App) CreateSyncCommand() *cobra.Command {
	return sync.NewCommand(a)
}

// CreateShowCommand creates the show command with app dependencies.
func (a *App) CreateShowCommand() *cobra.Command {
	return show.NewCommand(a)
}

// CreateListCommand creates the list command with app dependencies.
func (a *App) CreateListCommand() *cobra.Command {
	return list.NewCommand(a)
}

// CreateImportCommand creates the import command with app dependencies.
func (a *App) CreateImportCommand() *cobra.Command {
	return imports.NewCommand(a)
}

// CreateVersionCommand creates the version command.
func (a *App) CreateVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("racesync %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
				cmd.Printf("  go:       %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			}
		},
	}
}
