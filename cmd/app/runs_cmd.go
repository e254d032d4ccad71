package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"perfsummary/internal/pkg/runlog"
)

func newRunsCmd(opts *globalOptions) *cobra.Command {
	var (
		runID  string
		latest bool
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recorded audit outcomes from the run ledger",
		Long: "Show recorded audit outcomes from the run ledger at $RUN_LEDGER_PATH.\n" +
			"Without --run, the latest outcome of every page is listed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := setup(opts)
			if err != nil {
				return err
			}
			defer app.close()

			entries, err := app.runEntries(cmd.Context(), runID)
			if err != nil {
				return err
			}
			return writeEntries(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "list every outcome of this batch id")
	cmd.Flags().BoolVar(&latest, "latest", false, "list the latest outcome per page (default)")
	cmd.MarkFlagsMutuallyExclusive("run", "latest")
	return cmd
}

func writeEntries(out io.Writer, entries []runlog.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "no recorded outcomes")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATE\tATTEMPTS\tFINISHED\tRUN\tERROR")
	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			entry.Name,
			entry.State,
			entry.Attempts,
			entry.FinishedAt.Local().Format(time.DateTime),
			entry.RunID,
			entry.Error)
	}
	return w.Flush()
}
