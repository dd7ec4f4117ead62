// Package list provides the list command.
package list

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/racesync"
	"github.com/agentstation/racesync/internal/cmd/output"
	"github.com/agentstation/racesync/pkg/races"
)

// AppContext defines the interface that the list command needs from the app.
type AppContext interface {
	Client() (racesync.Client, error)
	Logger() *zerolog.Logger
	OutputFormat() string
}

// NewCommand creates the list command with app dependencies.
func NewCommand(app AppContext) *cobra.Command {
	var idsOnly bool

	cmd := &cobra.Command{
		Use:     "list",
		GroupID: "core",
		Short:   "List stored events",
		Example: `  racesync list
  racesync list --ids`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			ids, err := client.Events(cmd.Context())
			if err != nil {
				return err
			}
			if idsOnly {
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			}

			records := make([]*races.Record, 0, len(ids))
			for _, id := range ids {
				rec, err := client.Event(cmd.Context(), id)
				if err != nil {
					return err
				}
				records = append(records, rec)
			}
			app.Logger().Debug().Int("events", len(records)).Msg("listing events")
			return output.FormatRecords(cmd.OutOrStdout(), records, output.Format(app.OutputFormat()))
		},
	}

	cmd.Flags().BoolVar(&idsOnly, "ids", false, "print event IDs only")

	return cmd
}
