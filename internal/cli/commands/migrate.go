package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending layout database migrations",
		Long: `Apply any pending schema migrations to the layout database and
report the resulting schema version.

Migrations also run automatically when any command opens the store;
this command exists to run them explicitly, e.g. during deploys.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			version, err := cmdCtx.Store.MigrationVersion()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Database is up to date (schema version %d)\n", version)
			return nil
		},
	}
	return cmd
}
