package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"
)

func newAdviseCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "advise <description>",
		Short: "Audit a business proposal for eco-efficiency",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := a.exchangeContext(cmd.Context())
			defer cancel()
			report, err := a.advisor.Analyze(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
