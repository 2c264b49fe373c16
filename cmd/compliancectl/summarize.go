package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/compliance/internal/compliance"
)

func newSummarizeCmd(opts *options) *cobra.Command {
	var (
		checksFile string
		tasks      compliance.TaskCounts
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Score a building from a check history file",
		Long: `summarize reads a JSON array of checks and prints the displayed
compliance percentage. With no checks, the task counts given by
--tasks-total and --tasks-completed are scored instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := opts.catalog()
			if err != nil {
				return err
			}
			var checks []compliance.Check
			if checksFile != "" {
				if err := readJSON(cmd, checksFile, &checks); err != nil {
					return err
				}
			}
			if tasks.Completed > tasks.Total {
				return fmt.Errorf("--tasks-completed (%d) exceeds --tasks-total (%d)", tasks.Completed, tasks.Total)
			}

			sum := compliance.Displayed("", checks, tasks, catalog)
			if asJSON {
				return printJSON(cmd, sum)
			}
			return printSummary(cmd, sum, catalog)
		},
	}
	cmd.Flags().StringVar(&checksFile, "checks", "", "check history (JSON array), - for stdin")
	cmd.Flags().IntVar(&tasks.Total, "tasks-total", 0, "number of tasks, used when there are no checks")
	cmd.Flags().IntVar(&tasks.Completed, "tasks-completed", 0, "number of completed tasks")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}

func printSummary(cmd *cobra.Command, sum compliance.Summary, catalog compliance.Catalog) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Compliance: %d%% (%s)\n\n", sum.Percentage, sum.Source)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tSTATUS\tDATE")
	for _, info := range catalog.Entries() {
		c := sum.ByType[info.ID]
		if c == nil {
			fmt.Fprintf(tw, "%s\t-\t-\n", info.Label)
			continue
		}
		date := "-"
		if d, ok := c.EffectiveDate(); ok {
			date = d.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Label, c.Status, date)
	}
	return tw.Flush()
}
