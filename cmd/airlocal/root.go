package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for airlocal.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "airlocal",
		Short: "Local Airflow development environment on Docker",
		Long: `airlocal runs a local Airflow development environment: a Postgres
metadata database plus the Airflow local-runner image, wired together the
way the project's compose file describes, driven directly over the Docker
Engine API.`,
	}

	rootCmd.PersistentFlags().String("config", "", "path to config file")
	rootCmd.PersistentFlags().String("project-dir", "", "project directory holding dags/, plugins/ and db-data/")

	return rootCmd
}

// Execute builds the command tree and runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(
		newUpCmd(),
		newResetDBCmd(),
		newDownCmd(),
		newRenderCmd(),
		newValidateCmd(),
		newStatusCmd(),
		newLogsCmd(),
		newRunsCmd(),
		newServeCmd(),
		newVersionCmd(),
	)

	return rootCmd.Execute()
}
