package cmds

import "github.com/spf13/cobra"

// AddCommands registers every subcommand on root
func AddCommands(root *cobra.Command) error {
	root.AddCommand(newRunCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newProgramsCmd())
	root.AddCommand(newLaunchCmd())
	root.AddCommand(newStopCmd())
	root.AddCommand(newCancelCmd())
	root.AddCommand(newFocusCmd())
	root.AddCommand(newOptionCmd())
	root.AddCommand(newOptionsCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newMigrateCmd())
	return nil
}
