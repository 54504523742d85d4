package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/railsched/core/realtime"
)

func newDisruptCmd(root *rootOptions) *cobra.Command {
	var d realtime.Disruption
	c := &cobra.Command{
		Use:   "disrupt",
		Short: "Delay one train of the dataset and print the recomputed schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if d.TrainID == "" {
				return fmt.Errorf("--train is required")
			}
			svc, closeFn, err := newService(cmd, root)
			if err != nil {
				return err
			}
			defer closeFn()
			out, err := svc.Disrupt(commandContext(cmd), d, "cli")
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	c.Flags().StringVarP(&d.TrainID, "train", "t", "", "delayed train id")
	c.Flags().Float64Var(&d.DelayMinutes, "delay", 0, "additional delay in minutes")
	c.Flags().StringVarP(&d.Method, "method", "m", "", "strategy used to recompute (default hybrid)")
	return c
}
