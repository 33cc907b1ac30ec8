package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.0.0"

func main() {
	cmd := rootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nexus",
		Short: "Distributed task runner: DAG pipelines fanned out over local and SSH hosts",
	}

	root.PersistentFlags().StringP("config", "c", "", "pipeline YAML file")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")

	root.AddCommand(runCmd())
	root.AddCommand(dryRunCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(listCmd())
	root.AddCommand(versionCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}
