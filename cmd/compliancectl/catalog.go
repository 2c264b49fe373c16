package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCatalogCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the compliance check types",
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := opts.catalog()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLABEL\tINTERVAL")
			for _, e := range catalog.Entries() {
				fmt.Fprintf(tw, "%s\t%s\t%dm\n", e.ID, e.Label, e.IntervalMonths)
			}
			return tw.Flush()
		},
	}
}
