package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/railsched/core/conflict"
)

func newConflictsCmd(root *rootOptions) *cobra.Command {
	var (
		asJSON  bool
		weather string
		signal  string
	)
	c := &cobra.Command{
		Use:   "conflicts",
		Short: "List over-capacity sections and the proceed or hold decisions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cond := conflict.Conditions{Weather: weather, Signal: signal}
			if err := cond.Validate(); err != nil {
				return fmt.Errorf("--weather/--signal: %w", err)
			}
			svc, closeFn, err := newService(cmd, root)
			if err != nil {
				return err
			}
			defer closeFn()
			snap, ok := svc.Dataset()
			if !ok {
				return fmt.Errorf("no dataset: set dataset.path or pass --data")
			}
			conds := make(map[string]conflict.Conditions, len(snap.Sections))
			for _, s := range snap.Sections {
				conds[s.ID] = cond
			}
			rep := conflict.Analyze(svc.Runner.Engine(), snap, conds)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ALERT\tSECTION\tTRAIN\tACTION\tHOLD\tSCORE")
			for _, d := range rep.Decisions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.3f\n", d.AlertID, d.SectionID, d.TrainID, d.Action, d.HoldMinutes, d.Score)
			}
			return tw.Flush()
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	c.Flags().StringVar(&weather, "weather", "", "weather on every section: Clear, Rain, Fog or Storm")
	c.Flags().StringVar(&signal, "signal", "", "signal state on every section: Green, Yellow or Red")
	return c
}
