package cmds

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/laudenbachm/mbbs-launcher/internal/model"
	"github.com/laudenbachm/mbbs-launcher/internal/storage"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit     int
		programID string
		outcome   string
		since     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded launch attempts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			if !opts.Config.History.Enabled {
				return errors.New("launch history is disabled in the configuration")
			}

			history, err := storage.NewSQLiteLaunchHistory(opts.Logger, opts.Config.HistoryPath())
			if err != nil {
				return err
			}
			defer history.Close()

			filter := storage.Filter{ProgramID: programID, Outcome: model.LaunchOutcome(outcome)}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}

			records, err := history.List(cmd.Context(), filter, 0, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tPROGRAM\tNAME\tOUTCOME\tPID\tREASON")
			for _, r := range records {
				pid := "-"
				if r.PID > 0 {
					pid = fmt.Sprint(r.PID)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.AttemptedAt.Local().Format(time.DateTime), r.ProgramID, r.Name, r.Outcome, pid, r.Reason)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of records")
	cmd.Flags().StringVar(&programID, "program", "", "Only show one program")
	cmd.Flags().StringVar(&outcome, "outcome", "", "Only show one outcome (launched, skipped, file_not_found, spawn_failed, error)")
	cmd.Flags().DurationVar(&since, "since", 0, "Only show attempts within this duration")
	return cmd
}
