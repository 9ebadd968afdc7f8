package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTiersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tiers",
		Short: "Print the compute tier economics",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), renderTiers())
			return err
		},
	}
}
