package cmds

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/laudenbachm/mbbs-launcher/internal/launcher"
	"github.com/laudenbachm/mbbs-launcher/internal/model"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the server and auto-launch programs are running",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			defer opts.Logger.Sync()

			states, err := currentStates(cmd, opts)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(states)
			}
			return printStates(cmd.OutOrStdout(), states)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print machine readable output")
	return cmd
}

// currentStates asks the running launcher first, which also knows about
// pending countdowns, and polls the process table itself otherwise
func currentStates(cmd *cobra.Command, opts rootOptions) ([]model.ProgramState, error) {
	reply, err := sendToDaemon(opts, launcher.ActionStatus, "")
	if err == nil {
		return reply.States, nil
	}
	if !errors.Is(err, errNoDaemon) {
		return nil, err
	}

	_, programs, err := loadPrograms(opts)
	if err != nil {
		return nil, err
	}
	m := newStandaloneMonitor(opts, programs)
	m.Poll(cmd.Context())
	return m.Snapshot(cmd.Context()), nil
}

func printStates(out io.Writer, states []model.ProgramState) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tPID\tMEMORY\tCPU")
	for _, s := range states {
		pid, mem, cpu := "-", "-", "-"
		if s.PID > 0 {
			pid = fmt.Sprint(s.PID)
			mem = fmt.Sprintf("%.1f MB", float64(s.MemoryRSS)/(1<<20))
			cpu = fmt.Sprintf("%.1f%%", s.CPUPercent)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.StatusText(), pid, mem, cpu)
	}
	return w.Flush()
}
