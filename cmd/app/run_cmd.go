package main

import (
	"github.com/spf13/cobra"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Audit every target and write <name>.html and <name>.json per page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := setup(opts)
			if err != nil {
				return err
			}
			defer app.close()

			_, err = app.runBatch(cmd.Context())
			return err
		},
	}
}
