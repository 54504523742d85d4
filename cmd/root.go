package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/railsched/app"
	"github.com/kilianp07/railsched/config"
	"github.com/kilianp07/railsched/infra/logger"
)

type rootOptions struct {
	cfgPath string
	data    string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "railsched",
		Short:         "Railway section scheduling service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, opts)
		},
	}
	root.PersistentFlags().StringVarP(&opts.cfgPath, "config", "c", "config.yaml", "configuration file")
	root.PersistentFlags().StringVarP(&opts.data, "data", "d", "", "dataset file or directory, overrides dataset.path")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API, MQTT listener and metrics exporters",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd, opts)
			},
		},
		newOptimizeCmd(opts),
		newDisruptCmd(opts),
		newPriorityCmd(opts),
		newConflictsCmd(opts),
	)
	return root
}

// Execute runs the CLI.
func Execute() error { return NewRootCmd().Execute() }

// loadConfig reads the configuration file. A missing file is only an error
// when the path was given explicitly.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	var cfg *config.Config
	if _, err := os.Stat(opts.cfgPath); errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg = config.Default()
	} else {
		if cfg, err = config.Load(opts.cfgPath); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if opts.data != "" {
		cfg.Dataset.Path = opts.data
	}
	return cfg, nil
}

func newService(cmd *cobra.Command, opts *rootOptions) (*app.Service, func(), error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, nil, err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}
	return svc, closeFn, nil
}

func serve(cmd *cobra.Command, opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, closeFn, err := newService(cmd, opts)
	if err != nil {
		return err
	}
	defer closeFn()
	return svc.Run(ctx)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
