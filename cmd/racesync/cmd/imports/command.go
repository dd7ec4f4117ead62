// Package imports provides the import command, which applies manual edits
// from CSV files.
package imports

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/racesync"
	"github.com/agentstation/racesync/internal/cmd/output"
	"github.com/agentstation/racesync/pkg/edits"
	"github.com/agentstation/racesync/pkg/errors"
)

// AppContext defines the interface that the import command needs from the app.
type AppContext interface {
	Client() (racesync.Client, error)
	Logger() *zerolog.Logger
	OutputFormat() string
}

// NewCommand creates the import command with app dependencies.
func NewCommand(app AppContext) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:     "import <edits.csv>...",
		GroupID: "management",
		Short:   "Apply manual edits from CSV files",
		Long: `Import applies hand-made corrections. Every field written this way is
protected: later syncs keep its value whatever the sources report.

Two layouts are accepted. The long layout has the columns
event_id, variant, field, value. The wide layout has event_id, an optional
variant column, and one column per field. Blank cells are skipped.

An edit whose variant matches no stored variant creates that variant.`,
		Example: `  racesync import fixes.csv
  racesync import --strict fees.csv dates.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var list []edits.Edit
			for _, path := range args {
				batch, err := edits.ReadCSVFile(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				list = append(list, batch...)
			}

			client, err := app.Client()
			if err != nil {
				return err
			}
			report, err := client.ApplyEdits(cmd.Context(), list)
			if err != nil {
				return err
			}
			for _, r := range report.Rejected {
				app.Logger().Warn().Err(r.Err).Str("edit", r.Edit.String()).Msg("edit rejected")
			}

			if err := output.FormatEditReport(cmd.OutOrStdout(), report, output.Format(app.OutputFormat())); err != nil {
				return err
			}
			if strict && len(report.Rejected) > 0 {
				return errors.NewValidationError("edits", len(report.Rejected), "edits were rejected")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "exit with an error when any edit is rejected")

	return cmd
}
