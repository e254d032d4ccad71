package main

import (
	"github.com/spf13/cobra"
)

func newAggregateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate",
		Short: "Merge persisted reports, load-test means and field data into the summary page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := setup(opts)
			if err != nil {
				return err
			}
			defer app.close()

			return app.aggregate(cmd.Context())
		},
	}
}

func newAllCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run the audit batch, then aggregate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := setup(opts)
			if err != nil {
				return err
			}
			defer app.close()

			if _, err := app.runBatch(cmd.Context()); err != nil {
				return err
			}
			return app.aggregate(cmd.Context())
		},
	}
}
