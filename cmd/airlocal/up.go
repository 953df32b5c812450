package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lakeward/airlocal/internal/core/compose"
	"github.com/lakeward/airlocal/internal/core/domain"
	"github.com/lakeward/airlocal/internal/core/plan"
	"github.com/lakeward/airlocal/internal/core/stack"
	"github.com/lakeward/airlocal/internal/shell/docker"
	"github.com/spf13/cobra"
)

// newUpCmd creates the 'up' command.
func newUpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Bring the Airflow stack up",
		Long: `Bring the stack up in the selected mode:
  local    Postgres plus the Airflow webserver and scheduler (default)
  resetdb  one-shot metadata database reset
  dbonly   Postgres alone`,
		RunE: func(cmd *cobra.Command, args []string) error {
			modeFlag, _ := cmd.Flags().GetString("mode")
			mode, err := stack.ParseMode(modeFlag)
			if err != nil {
				return usageError(err)
			}
			file, _ := cmd.Flags().GetString("file")
			return runStack(cmd, mode, file)
		},
	}

	cmd.Flags().String("mode", string(stack.ModeLocal), "stack mode: local, resetdb, or dbonly")
	cmd.Flags().StringP("file", "f", "", "run a compose file instead of the built-in stack")

	return cmd
}

// newResetDBCmd creates the 'resetdb' command, shorthand for up --mode resetdb.
func newResetDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resetdb",
		Short: "Reset the Airflow metadata database and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStack(cmd, stack.ModeResetDB, "")
		},
	}
}

// runStack executes one stack invocation and records it in the ledger.
func runStack(cmd *cobra.Command, mode stack.Mode, composeFile string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	parsed, err := buildStack(a.cfg, mode, composeFile)
	if err != nil {
		return usageError(err)
	}

	// A stack containing the resetdb service runs to completion.
	oneShot := ""
	if parsed.Service(stack.ResetDBService) != nil {
		oneShot = stack.ResetDBService
	}

	p, err := plan.Build(parsed, plan.Options{
		Project:        a.cfg.Project,
		OneShotService: oneShot,
	})
	if err != nil {
		return err
	}

	run := domain.NewRun(string(mode), a.cfg.ProjectDir)
	if err := recordNewRun(ctx, a.ledger, run); err != nil {
		return err
	}
	record := func(r *domain.Run) {
		// Record with a fresh context so a cancelled run is still written
		if err := a.ledger.UpdateRun(context.Background(), r); err != nil {
			a.logger.Error("failed to record run", "run_id", r.ID, "error", err)
		}
	}

	result, err := a.runner.Execute(ctx, p, docker.ExecuteOptions{
		RunID:        run.ID,
		ReadyTimeout: a.cfg.Stack.ReadyTimeout,
		LogOutput:    os.Stdout,
	})
	if err != nil {
		run.Fail(err.Error())
		record(run)
		return err
	}

	run.Containers = result.Containers
	run.ExitCode = result.ExitCode
	_ = run.Transition(domain.StatusRunning)

	if oneShot != "" {
		return finishOneShot(a, run, oneShot, result, record)
	}

	record(run)
	printStackUp(a.cfg, mode, result)
	return nil
}

// finishOneShot settles a completed one-shot run: ledger entry, teardown,
// and exit code passthrough.
func finishOneShot(a *app, run *domain.Run, service string, result *docker.ExecuteResult, record func(*domain.Run)) error {
	code := 0
	if result.ExitCode != nil {
		code = *result.ExitCode
	}

	if code == 0 {
		_ = run.Transition(domain.StatusSucceeded)
	} else {
		run.Fail(fmt.Sprintf("%s exited with code %d", service, code))
	}
	record(run)

	// The one-shot is done; take the stack down. Bind-mounted data stays.
	if err := a.runner.Down(context.Background(), a.cfg.Project, false); err != nil {
		a.logger.Error("teardown after one-shot failed", "error", err)
	}

	if code != 0 {
		return &ExitError{Code: code, Err: fmt.Errorf("%s exited with code %d", service, code)}
	}

	fmt.Println("metadata database reset complete")
	return nil
}

// buildStack returns either the built-in stack for a mode or a parsed
// user-provided compose file.
func buildStack(cfg *Config, mode stack.Mode, composeFile string) (*compose.ParsedStack, error) {
	if composeFile == "" {
		return stack.Build(mode, cfg.StackOptions())
	}

	content, err := os.ReadFile(composeFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", composeFile, err)
	}
	return compose.ParseStackWithEnv(string(content), map[string]string{"PWD": cfg.ProjectDir})
}

func printStackUp(cfg *Config, mode stack.Mode, result *docker.ExecuteResult) {
	fmt.Printf("stack up (%s mode)\n", mode)
	for _, c := range result.Containers {
		fmt.Printf("  %-14s %-24s %s\n", c.ServiceName, c.Image, c.Status)
	}
	if mode == stack.ModeLocal {
		fmt.Printf("\nAirflow UI: http://localhost:%d\n", cfg.Stack.WebserverPort)
	}
}
