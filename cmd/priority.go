package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newPriorityCmd(root *rootOptions) *cobra.Command {
	c := &cobra.Command{
		Use:   "priority",
		Short: "Priority related commands",
	}
	var asJSON bool
	rank := &cobra.Command{
		Use:   "rank",
		Short: "Print the dataset trains from most to least urgent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := newService(cmd, root)
			if err != nil {
				return err
			}
			defer closeFn()
			snap, ok := svc.Dataset()
			if !ok {
				return fmt.Errorf("no dataset: set dataset.path or pass --data")
			}
			rows := svc.Runner.Engine().Rank(snap.Trains)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tTRAIN\tTYPE\tSCORE\tEXPLANATION")
			for _, r := range rows {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%.3f\t%s\n", r.Rank, r.TrainID, r.TrainType, r.Score, r.Explanation)
			}
			return tw.Flush()
		},
	}
	rank.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	c.AddCommand(rank)
	return c
}
