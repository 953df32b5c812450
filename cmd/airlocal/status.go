package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newStatusCmd creates the 'status' command.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stack's containers and health",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()

			containers, err := a.runner.Status(ctx, a.cfg.Project)
			if err != nil {
				return err
			}
			if len(containers) == 0 {
				fmt.Printf("project %s: no containers\n", a.cfg.Project)
				return nil
			}

			health, err := a.runner.StackHealth(ctx, a.cfg.Project)
			if err != nil {
				return err
			}

			fmt.Printf("project %s: %s\n\n", a.cfg.Project, health.Status)
			fmt.Printf("%-14s %-24s %-10s %s\n", "SERVICE", "IMAGE", "STATUS", "PORTS")
			for _, c := range containers {
				ports := make([]string, 0, len(c.Ports))
				for _, p := range c.Ports {
					ports = append(ports, fmt.Sprintf("%d:%d/%s", p.HostPort, p.ContainerPort, p.Protocol))
				}
				fmt.Printf("%-14s %-24s %-10s %s\n", c.ServiceName, c.Image, c.Status, strings.Join(ports, ", "))
			}

			return nil
		},
	}
}
