package cmds

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/laudenbachm/mbbs-launcher/internal/config"
	"github.com/laudenbachm/mbbs-launcher/internal/launcher"
	"github.com/laudenbachm/mbbs-launcher/internal/process"
)

func parseOptionNumber(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || !config.ValidOption(n) {
		return 0, fmt.Errorf("%w: %s", config.ErrUnknownOption, arg)
	}
	return n, nil
}

func newOptionCmd() *cobra.Command {
	var noFocus bool

	cmd := &cobra.Command{
		Use:   "option <number>",
		Short: "Run a numbered program from the [Programs] menu",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseOptionNumber(args[0])
			if err != nil {
				return err
			}
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			defer opts.Logger.Sync()

			opt, err := config.NewOptionStore(opts.Config.File, opts.Logger).Get(n)
			if err != nil {
				return err
			}

			query := process.NewSystem(opts.Logger)
			result, err := launcher.RunOption(cmd.Context(), query, opts.Config, opt, !noFocus, opts.Logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch result.Action {
			case launcher.OptionLaunched:
				printLaunchResult(out, *result.Launch)
			case launcher.OptionFocused:
				fmt.Fprintf(out, "%s is already running; brought to the foreground\n", opt.Name)
			default:
				fmt.Fprintf(out, "%s is already running\n", opt.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noFocus, "no-focus", false, "Do not focus the program when it already runs")
	return cmd
}

func newOptionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "options",
		Short: "Manage the numbered [Programs] menu",
	}
	cmd.AddCommand(newOptionsListCmd(), newOptionsSetCmd(), newOptionsInitCmd())
	return cmd
}

func newOptionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the menu options",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			options, err := config.NewOptionStore(opts.Config.File, opts.Logger).Load()
			if err != nil {
				return err
			}
			return printOptions(cmd.OutOrStdout(), options)
		},
	}
}

func printOptions(out io.Writer, options []config.MenuOption) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OPTION\tNAME\tCOMMAND")
	for _, o := range options {
		command := o.Command
		if !o.Configured() {
			command = "(not configured)"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", o.Number, o.Name, command)
	}
	return w.Flush()
}

func newOptionsSetCmd() *cobra.Command {
	var name, command string

	cmd := &cobra.Command{
		Use:   "set <number>",
		Short: "Set the name and command of a menu option",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseOptionNumber(args[0])
			if err != nil {
				return err
			}
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}

			store := config.NewOptionStore(opts.Config.File, opts.Logger)
			options, err := store.Load()
			if err != nil {
				return err
			}
			var opt config.MenuOption
			for _, o := range options {
				if o.Number == n {
					opt = o
				}
			}
			if cmd.Flags().Changed("name") {
				opt.Name = name
			}
			if cmd.Flags().Changed("command") {
				opt.Command = command
			}
			if err := store.Set(opt); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Option %d: %s\n", opt.Number, opt.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Menu label")
	cmd.Flags().StringVar(&command, "command", "", "Executable followed by its arguments; empty clears the option")
	return cmd
}

func newOptionsInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the stock Worldgroup menu when none is configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			wrote, err := config.NewOptionStore(opts.Config.File, opts.Logger).WriteDefaults(opts.Config.Paths.BBSPath)
			if err != nil {
				return err
			}
			if !wrote {
				fmt.Fprintln(cmd.OutOrStdout(), "Menu options already configured")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote default menu options")
			return nil
		},
	}
}
