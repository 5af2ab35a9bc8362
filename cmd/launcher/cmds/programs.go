package cmds

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/laudenbachm/mbbs-launcher/internal/model"
)

func newProgramsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "programs",
		Short: "Manage auto-launch programs",
	}
	cmd.AddCommand(
		newProgramsListCmd(),
		newProgramsAddCmd(),
		newProgramsUpdateCmd(),
		newProgramsRemoveCmd(),
		newProgramsEnableCmd(true),
		newProgramsEnableCmd(false),
	)
	return cmd
}

func newProgramsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the configured auto-launch programs",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			_, programs, err := loadPrograms(opts)
			if err != nil {
				return err
			}
			return printPrograms(cmd.OutOrStdout(), programs)
		},
	}
}

func printPrograms(out io.Writer, programs []model.LaunchProgram) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tENABLED\tDELAY\tMINIMIZED\tCOMMAND")
	for _, p := range programs {
		fmt.Fprintf(w, "%s\t%s\t%t\t%ds\t%t\t%s\n",
			p.ID, p.Name, p.Enabled, p.DelaySeconds, p.LaunchMinimized, p.FullCommand())
	}
	return w.Flush()
}

// programFlags are the editable fields of a program
type programFlags struct {
	name      string
	path      string
	args      string
	delay     int
	enabled   bool
	minimized bool
}

func (f *programFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Display name")
	cmd.Flags().StringVar(&f.path, "path", "", "Full path of the executable")
	cmd.Flags().StringVar(&f.args, "args", "", "Command line arguments")
	cmd.Flags().IntVar(&f.delay, "delay", model.DefaultDelaySeconds, "Seconds to wait before launching")
	cmd.Flags().BoolVar(&f.enabled, "enabled", true, "Launch automatically")
	cmd.Flags().BoolVar(&f.minimized, "minimized", true, "Start with a minimized window")
}

// apply copies the flags the user set onto p
func (f *programFlags) apply(cmd *cobra.Command, p *model.LaunchProgram) {
	changed := cmd.Flags().Changed
	if changed("name") {
		p.Name = f.name
	}
	if changed("path") {
		p.Path = f.path
	}
	if changed("args") {
		p.Arguments = f.args
	}
	if changed("delay") {
		p.DelaySeconds = f.delay
	}
	if changed("enabled") {
		p.Enabled = f.enabled
	}
	if changed("minimized") {
		p.LaunchMinimized = f.minimized
	}
}

func newProgramsAddCmd() *cobra.Command {
	var flags programFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a program in the first free slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			store, _, err := loadPrograms(opts)
			if err != nil {
				return err
			}

			p := model.LaunchProgram{
				DelaySeconds:    flags.delay,
				Enabled:         flags.enabled,
				LaunchMinimized: flags.minimized,
			}
			flags.apply(cmd, &p)

			added, err := store.Add(p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s as %s\n", added.Name, added.ID)
			return nil
		},
	}
	flags.register(cmd)
	cobra.CheckErr(cmd.MarkFlagRequired("name"))
	cobra.CheckErr(cmd.MarkFlagRequired("path"))
	return cmd
}

func newProgramsUpdateCmd() *cobra.Command {
	var flags programFlags

	cmd := &cobra.Command{
		Use:   "update <program-id>",
		Short: "Change the settings of a program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			store, _, err := loadPrograms(opts)
			if err != nil {
				return err
			}

			p, err := store.Get(args[0])
			if err != nil {
				return err
			}
			flags.apply(cmd, &p)
			return store.Update(p)
		},
	}
	flags.register(cmd)
	return cmd
}

func newProgramsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <program-id>",
		Short: "Remove a program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			store, _, err := loadPrograms(opts)
			if err != nil {
				return err
			}
			return store.Remove(args[0])
		},
	}
}

func newProgramsEnableCmd(enable bool) *cobra.Command {
	use, short := "enable", "Enable automatic launch of a program"
	if !enable {
		use, short = "disable", "Disable automatic launch of a program"
	}
	return &cobra.Command{
		Use:   use + " <program-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			store, _, err := loadPrograms(opts)
			if err != nil {
				return err
			}
			return store.SetEnabled(args[0], enable)
		},
	}
}
