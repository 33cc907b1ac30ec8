package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func dryRunCmd() *cobra.Command {
	var targets []string

	cmd := &cobra.Command{
		Use:   "dry-run",
		Short: "print the phase decomposition for the named tasks without running anything",
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

			plan, err := sched.DryRun(targets)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.AppendHeader(table.Row{"Phase", "Task", "On", "Strategy"})
			for i, phase := range plan.Phases {
				for _, name := range phase {
					task := plan.TaskDetails[name]
					t.AppendRow(table.Row{i, name, task.On, task.Strategy})
				}
			}
			fmt.Printf("total tasks: %d\n", plan.TotalTasks)
			fmt.Println(t.Render())
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&targets, "target", "t", nil, "target task names (default: all tasks)")
	return cmd
}
