package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newDownCmd creates the 'down' command.
func newDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Stop and remove the stack's containers and network",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			// Bind-mounted data (db-data, dags, plugins) is user data and
			// is never removed.
			if err := a.runner.Down(cmd.Context(), a.cfg.Project, false); err != nil {
				return err
			}

			settleStoppedRun(cmd.Context(), a.ledger, a.logger)

			fmt.Printf("project %s is down\n", a.cfg.Project)
			return nil
		},
	}
}
