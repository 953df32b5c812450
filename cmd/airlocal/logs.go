package main

import (
	"os"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/lakeward/airlocal/internal/shell/docker"
	"github.com/spf13/cobra"
)

// newLogsCmd creates the 'logs' command.
func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs <service>",
		Short: "Stream a service's container logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			follow, _ := cmd.Flags().GetBool("follow")
			tail, _ := cmd.Flags().GetString("tail")

			reader, err := a.runner.Logs(cmd.Context(), a.cfg.Project, args[0], docker.LogOptions{
				Follow: follow,
				Tail:   tail,
			})
			if err != nil {
				return err
			}
			defer reader.Close()

			// The stream multiplexes stdout and stderr
			_, err = stdcopy.StdCopy(os.Stdout, os.Stderr, reader)
			return err
		},
	}

	cmd.Flags().BoolP("follow", "f", false, "follow the log stream")
	cmd.Flags().String("tail", "all", "number of lines from the end, or \"all\"")

	return cmd
}
