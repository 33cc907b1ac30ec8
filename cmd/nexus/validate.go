package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nexus-run/nexus/internal/core"
)

func validateCmd() *cobra.Command {
	var targets []string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "check the pipeline config and target tasks without running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			sched, closeFn := buildScheduler(cfg, false, cfg.Defaults.ContinueOnError)
			defer closeFn()

			if len(targets) == 0 {
				targets = allTaskNames(cfg)
			}

			if err := sched.Validate(targets); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&targets, "target", "t", nil, "target task names (default: all tasks)")
	return cmd
}

func allTaskNames(cfg core.Config) []string {
	names := make([]string, 0, len(cfg.Tasks))
	for name := range cfg.Tasks {
		names = append(names, name)
	}
	return names
}
