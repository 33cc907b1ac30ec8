package main

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list the tasks defined in the pipeline config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			names := allTaskNames(cfg)
			sort.Strings(names)

			t := table.NewWriter()
			t.AppendHeader(table.Row{"Task", "On", "Strategy", "Deps", "Tags"})
			for _, name := range names {
				task := cfg.Tasks[name]
				t.AppendRow(table.Row{name, task.On, task.Strategy, task.Deps, task.Tags})
			}
			fmt.Println(t.Render())
			return nil
		},
	}
}
