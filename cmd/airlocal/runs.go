package main

import (
	"fmt"
	"time"

	"github.com/lakeward/airlocal/internal/core/domain"
	"github.com/lakeward/airlocal/internal/shell/store"
	"github.com/spf13/cobra"
)

// newRunsCmd creates the 'runs' command.
func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded stack runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if cmd.Flags().Changed("prune") {
				keep, _ := cmd.Flags().GetInt("prune")
				removed, err := a.ledger.PruneRuns(cmd.Context(), keep)
				if err != nil {
					return err
				}
				fmt.Printf("pruned %d run(s), kept the newest %d\n", removed, keep)
				return nil
			}

			limit, _ := cmd.Flags().GetInt("limit")
			mode, _ := cmd.Flags().GetString("mode")

			opts := store.ListOptions{Limit: limit}
			var runs []domain.Run
			if mode != "" {
				list, err := a.ledger.ListRunsByMode(cmd.Context(), mode, opts)
				if err != nil {
					return err
				}
				runs = list
			} else {
				list, err := a.ledger.ListRuns(cmd.Context(), opts)
				if err != nil {
					return err
				}
				runs = list
			}

			if len(runs) == 0 {
				fmt.Println("no runs recorded")
				return nil
			}

			fmt.Printf("%-36s %-8s %-10s %-20s %-9s %s\n",
				"RUN", "MODE", "STATUS", "STARTED", "DURATION", "EXIT")
			for _, run := range runs {
				started := "-"
				if run.StartedAt != nil {
					started = run.StartedAt.Local().Format(time.DateTime)
				}
				duration := "-"
				if d := run.Duration(); d > 0 {
					duration = d.Round(time.Second).String()
				}
				exit := "-"
				if run.ExitCode != nil {
					exit = fmt.Sprintf("%d", *run.ExitCode)
				}
				fmt.Printf("%-36s %-8s %-10s %-20s %-9s %s\n",
					run.ID, run.Mode, run.Status, started, duration, exit)
			}

			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "maximum number of runs to list")
	cmd.Flags().String("mode", "", "filter by mode: local, resetdb, or dbonly")
	cmd.Flags().Int("prune", 0, "delete all but the newest N runs and exit")

	return cmd
}
