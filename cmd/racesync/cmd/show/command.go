// Package show provides the show command.
package show

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/racesync"
	"github.com/agentstation/racesync/internal/cmd/output"
)

// AppContext defines the interface that the show command needs from the app.
type AppContext interface {
	Client() (racesync.Client, error)
	Logger() *zerolog.Logger
	OutputFormat() string
}

// NewCommand creates the show command with app dependencies.
func NewCommand(app AppContext) *cobra.Command {
	return &cobra.Command{
		Use:     "show <event-id>",
		GroupID: "core",
		Short:   "Show a stored event and its variants",
		Long: `Show prints the stored record of one event: its fields with their
confidence, every variant, and the fields that were fixed by hand.

Wide output (-o wide) also lists unset event fields and the variant
schedule, registration and provenance columns.`,
		Example: `  racesync show 2025-lakeside-marathon
  racesync show 2025-lakeside-marathon -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			rec, err := client.Event(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return output.FormatRecord(cmd.OutOrStdout(), rec, output.Format(app.OutputFormat()))
		},
	}
}
