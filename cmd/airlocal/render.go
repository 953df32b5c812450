package main

import (
	"fmt"
	"os"

	"github.com/lakeward/airlocal/internal/core/stack"
	"github.com/spf13/cobra"
)

// newRenderCmd creates the 'render' command.
func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the stack as a Docker Compose document",
		Long: `Render the selected mode's stack as a Compose v3.7 YAML document.
Bind-mount sources are emitted as ${PWD}-relative paths so the document
is portable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			modeFlag, _ := cmd.Flags().GetString("mode")
			mode, err := stack.ParseMode(modeFlag)
			if err != nil {
				return usageError(err)
			}

			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			doc, err := stack.Render(mode, cfg.StackOptions())
			if err != nil {
				return err
			}

			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				fmt.Print(doc)
				return nil
			}
			if err := os.WriteFile(output, []byte(doc), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().String("mode", string(stack.ModeResetDB), "stack mode: local, resetdb, or dbonly")
	cmd.Flags().StringP("output", "o", "", "write to file instead of stdout")

	return cmd
}
