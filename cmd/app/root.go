package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Command-line overrides for values that normally come from the environment.
type globalOptions struct {
	TargetsFile string
	ReportsDir  string
	ReportsRoot string
	MaxAttempts int
}

func newRootCmd() *cobra.Command {
	var opts globalOptions

	cmd := &cobra.Command{
		Use:           "perfsummary",
		Short:         "Audit target pages with Lighthouse and merge the results into one summary",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.TargetsFile, "targets", "", "ordered name -> url mapping (JSON or YAML, default $TARGETS_FILE)")
	cmd.PersistentFlags().StringVar(&opts.ReportsDir, "reports-dir", "", "directory for per-page reports and the summary (default $REPORTS_DIR)")
	cmd.PersistentFlags().StringVar(&opts.ReportsRoot, "reports-root", "", "directory scanned for Gatling runs (default $REPORTS_ROOT)")
	cmd.PersistentFlags().IntVar(&opts.MaxAttempts, "max-attempts", 0, "audit attempts per page (default $MAX_ATTEMPTS)")

	cmd.AddCommand(newRunCmd(&opts))
	cmd.AddCommand(newAggregateCmd(&opts))
	cmd.AddCommand(newAllCmd(&opts))
	cmd.AddCommand(newRunsCmd(&opts))
	return cmd
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		stop()
		os.Exit(1)
	}
}
