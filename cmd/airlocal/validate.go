package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/lakeward/airlocal/internal/core/compose"
	"github.com/lakeward/airlocal/internal/core/stack"
	"github.com/spf13/cobra"
)

// newValidateCmd creates the 'validate' command.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a compose file against the resetdb stack contract",
		Long: `Validate that a compose document matches the resetdb stack: the
postgres and resetdb services, their images, environment, bind mounts,
the depends_on edge, the published port, the reset command, and log
rotation. With no file argument the built-in stack is rendered and
validated.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			var content string
			if len(args) == 1 {
				raw, err := os.ReadFile(args[0])
				if err != nil {
					return usageError(fmt.Errorf("failed to read %s: %w", args[0], err))
				}
				content = string(raw)
			} else {
				content, err = stack.Render(stack.ModeResetDB, cfg.StackOptions())
				if err != nil {
					return err
				}
			}

			parsed, err := compose.ParseStackWithEnv(content, map[string]string{"PWD": cfg.ProjectDir})
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %v\n", err)
				return &ExitError{Code: ExitUsage}
			}

			violations := compose.ResetStackChecks(parsed)
			if len(violations) == 0 {
				fmt.Println("OK: stack matches the resetdb contract")
				return nil
			}

			for _, v := range violations {
				var cv *compose.CheckViolation
				if errors.As(v, &cv) {
					fmt.Fprintf(cmd.ErrOrStderr(), "FAIL %s: %s\n", cv.Field, cv.Message)
					continue
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %v\n", v)
			}
			return &ExitError{Code: ExitUsage, Err: fmt.Errorf("%d check(s) failed", len(violations))}
		},
	}
}
