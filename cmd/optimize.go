package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/optimizer"
	"github.com/kilianp07/railsched/pkg/export"
)

func newOptimizeCmd(root *rootOptions) *cobra.Command {
	var (
		method    string
		format    string
		out       string
		overrides string
	)
	c := &cobra.Command{
		Use:   "optimize",
		Short: "Optimize the dataset once and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "json" && format != "csv" {
				return fmt.Errorf("unknown format %q", format)
			}
			var ov map[string]any
			if overrides != "" {
				if err := json.Unmarshal([]byte(overrides), &ov); err != nil {
					return fmt.Errorf("--overrides: %w", err)
				}
			}
			svc, closeFn, err := newService(cmd, root)
			if err != nil {
				return err
			}
			defer closeFn()
			if _, ok := svc.Dataset(); !ok {
				return fmt.Errorf("no dataset: set dataset.path or pass --data")
			}
			res, err := svc.Optimize(commandContext(cmd), optimizer.Request{Method: method, Overrides: ov}, "cli")
			if err != nil {
				return err
			}
			return writeResult(cmd, res, format, out)
		},
	}
	c.Flags().StringVarP(&method, "method", "m", "", "strategy: heuristic, aco, ga, rl or hybrid (default from config)")
	c.Flags().StringVarP(&format, "format", "f", "json", "output format: json or csv")
	c.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout")
	c.Flags().StringVar(&overrides, "overrides", "", `parameter overrides as JSON, e.g. '{"ga":{"generations":10}}'`)
	return c
}

func writeResult(cmd *cobra.Command, res model.OptimizationResult, format, out string) (err error) {
	var write func(io.Writer, model.OptimizationResult) error
	switch format {
	case "json":
		write = export.WriteJSON
	case "csv":
		write = export.WriteCSV
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	if out == "" {
		return write(cmd.OutOrStdout(), res)
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f, res)
}
