// Package domain contains the core entities for airlocal: stack runs and
// their container state. No I/O lives here.
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Run Errors
// =============================================================================

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownMode       = errors.New("unknown stack mode")
)

// =============================================================================
// Run Status
// =============================================================================

// RunStatus is the lifecycle state of a stack run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusStarting  RunStatus = "starting"
	StatusRunning   RunStatus = "running"
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
	StatusStopped   RunStatus = "stopped"
)

// validTransitions maps each status to the statuses it may move to.
var validTransitions = map[RunStatus][]RunStatus{
	StatusPending:   {StatusStarting, StatusFailed},
	StatusStarting:  {StatusRunning, StatusFailed},
	StatusRunning:   {StatusSucceeded, StatusFailed, StatusStopped},
	StatusSucceeded: {},
	StatusFailed:    {},
	StatusStopped:   {},
}

// IsTerminal reports whether the status is a final state.
func (s RunStatus) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusStopped
}

// =============================================================================
// Container Info
// =============================================================================

// PortMapping represents a published port.
type PortMapping struct {
	ContainerPort int    `json:"container_port"`
	HostPort      int    `json:"host_port"`
	Protocol      string `json:"protocol"` // tcp, udp
}

// ContainerInfo records a container started for a run.
type ContainerInfo struct {
	ID          string        `json:"id"`
	ServiceName string        `json:"service_name"`
	Image       string        `json:"image"`
	Status      string        `json:"status"`
	Ports       []PortMapping `json:"ports,omitempty"`
}

// =============================================================================
// Run
// =============================================================================

// Run represents a single invocation of the stack: a resetdb one-shot,
// a detached `up`, or a db-only start.
type Run struct {
	ID           string          `json:"id"`
	Mode         string          `json:"mode"` // local, resetdb, dbonly
	ProjectDir   string          `json:"project_dir"`
	Status       RunStatus       `json:"status"`
	Containers   []ContainerInfo `json:"containers,omitempty"`
	ExitCode     *int            `json:"exit_code,omitempty"` // one-shot modes only
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
}

// NewRun creates a pending run for the given mode and project directory.
func NewRun(mode, projectDir string) *Run {
	now := time.Now().UTC()
	return &Run{
		ID:         uuid.New().String(),
		Mode:       mode,
		ProjectDir: projectDir,
		Status:     StatusPending,
		CreatedAt:  now,
	}
}

// Transition moves the run to a new status, enforcing the state machine.
func (r *Run) Transition(to RunStatus) error {
	for _, allowed := range validTransitions[r.Status] {
		if allowed == to {
			r.applyTransition(to)
			return nil
		}
	}
	return ErrInvalidTransition
}

func (r *Run) applyTransition(to RunStatus) {
	now := time.Now().UTC()
	switch to {
	case StatusStarting:
		r.StartedAt = &now
	case StatusSucceeded, StatusFailed, StatusStopped:
		r.FinishedAt = &now
	}
	r.Status = to
}

// Fail marks the run failed with a reason, from any non-terminal state.
func (r *Run) Fail(reason string) {
	if r.Status.IsTerminal() {
		return
	}
	r.ErrorMessage = reason
	r.applyTransition(StatusFailed)
}

// Stop marks the run stopped, from any non-terminal state. A deliberate
// teardown is not a failure, so no error message is recorded.
func (r *Run) Stop() {
	if r.Status.IsTerminal() {
		return
	}
	r.applyTransition(StatusStopped)
}

// Duration returns the wall time between start and finish, or zero if the
// run never started or has not finished.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}
