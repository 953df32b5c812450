package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newVersionCmd creates the 'version' command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the airlocal version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("airlocal %s (built %s)\n", Version, BuildTime)
			return nil
		},
	}
}
