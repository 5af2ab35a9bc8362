package main

import (
	"github.com/spf13/cobra"

	"github.com/laudenbachm/mbbs-launcher/cmd/launcher/cmds"
)

var version = "2.0.0"

var rootCmd = &cobra.Command{
	Use:          "mbbs-launcher",
	Short:        "Starts the MajorBBS server and its companion programs",
	Version:      version,
	SilenceUsage: true,
}

func main() {
	cmds.AddRootFlags(rootCmd)
	cobra.CheckErr(cmds.AddCommands(rootCmd))
	cobra.CheckErr(rootCmd.Execute())
}
