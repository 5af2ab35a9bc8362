package cmds

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/laudenbachm/mbbs-launcher/internal/config"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Upgrade a v1.20 configuration file to auto-launch slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}

			needs, err := config.NeedsMigration(opts.Config.File)
			if err != nil {
				return err
			}
			if !needs {
				fmt.Fprintln(cmd.OutOrStdout(), "Configuration is up to date")
				return nil
			}

			result, err := config.Migrate(opts.Config.File)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", result.BackupPath)
			for _, line := range result.Migrated {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", line)
			}
			return nil
		},
	}
}
