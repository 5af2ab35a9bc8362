package cmds

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/laudenbachm/mbbs-launcher/internal/launcher"
	"github.com/laudenbachm/mbbs-launcher/internal/model"
)

func newLaunchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "launch <program-id>",
		Short: "Launch a stopped or crashed program now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			defer opts.Logger.Sync()

			reply, err := sendToDaemon(opts, launcher.ActionLaunch, args[0])
			switch {
			case err == nil:
				if reply.Result != nil {
					printLaunchResult(cmd.OutOrStdout(), *reply.Result)
				}
				return nil
			case !errors.Is(err, errNoDaemon):
				return err
			}

			_, programs, err := loadPrograms(opts)
			if err != nil {
				return err
			}
			m := newStandaloneMonitor(opts, programs)
			m.Poll(cmd.Context())

			result, err := m.LaunchNow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printLaunchResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func printLaunchResult(out io.Writer, result model.LaunchResult) {
	fmt.Fprintf(out, "%s: %s", result.Name, result.Outcome)
	if result.PID > 0 {
		fmt.Fprintf(out, " (pid %d)", result.PID)
	}
	fmt.Fprintln(out)
}

func newCancelCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "cancel [program-id]",
		Short: "Cancel pending auto-launches of the running launcher",
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.New("pass a program id or --all, not both")
			}
			if !all && len(args) != 1 {
				return errors.New("a program id or --all is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			defer opts.Logger.Sync()

			action, id := launcher.ActionCancel, ""
			if all {
				action = launcher.ActionCancelAll
			} else {
				id = args[0]
			}

			// Countdowns only exist inside the running launcher.
			reply, err := sendToDaemon(opts, action, id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply.Message)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Cancel every pending launch")
	return cmd
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <program-id>",
		Short: "Terminate every process of a running auto-launch program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			defer opts.Logger.Sync()

			reply, err := sendToDaemon(opts, launcher.ActionStop, args[0])
			switch {
			case err == nil:
				fmt.Fprintln(cmd.OutOrStdout(), reply.Message)
				return nil
			case !errors.Is(err, errNoDaemon):
				return err
			}

			_, programs, err := loadPrograms(opts)
			if err != nil {
				return err
			}
			m := newStandaloneMonitor(opts, programs)
			m.Poll(cmd.Context())

			n, err := m.StopNow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped %d process(es)\n", n)
			return nil
		},
	}
}

func newFocusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "focus <program-id>",
		Short: "Bring the window of a running program to the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			defer opts.Logger.Sync()

			_, programs, err := loadPrograms(opts)
			if err != nil {
				return err
			}
			m := newStandaloneMonitor(opts, programs)

			ok, err := m.Focus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s has no window that could be focused", args[0])
			}
			return nil
		},
	}
}
