package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Exit codes. A one-shot runner container's own non-zero exit code is
// passed through unchanged.
const (
	ExitSuccess = 0
	ExitRuntime = 1
	ExitUsage   = 2
)

func main() {
	// A .env in the working directory can override stack settings
	_ = godotenv.Load()
	os.Exit(run())
}

func run() int {
	if err := Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", exitErr.Err)
			}
			return exitErr.Code
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitRuntime
	}
	return ExitSuccess
}

// =============================================================================
// Exit Error
// =============================================================================

// ExitError carries a process exit code alongside the underlying error.
// A nil Err suppresses the message (the failure was already reported).
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func usageError(err error) *ExitError {
	return &ExitError{Code: ExitUsage, Err: err}
}
