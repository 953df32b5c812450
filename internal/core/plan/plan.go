// Package plan turns a parsed stack into an executable launch sequence:
// dependency-ordered services, per-service readiness gates, and resource
// names. Pure functions only; the docker shell executes the plan.
package plan

import (
	"fmt"
	"time"

	"github.com/lakeward/airlocal/internal/core/compose"
)

// =============================================================================
// Launch Plan
// =============================================================================

// Step is one service launch in dependency order.
type Step struct {
	Service compose.Service

	// ContainerName is the concrete container name for this step.
	ContainerName string

	// WaitHealthy gates subsequent steps on this container reporting a
	// healthy Docker health check.
	WaitHealthy bool

	// OneShot marks the step whose exit code is the run's outcome. The
	// executor streams its logs and waits for it to finish.
	OneShot bool
}

// LaunchPlan is the full launch sequence for a project.
type LaunchPlan struct {
	Project     string
	NetworkName string
	Steps       []Step

	// Volumes are the stack's named volumes, created before any step runs.
	// External volumes are excluded.
	Volumes []string
}

// Options parameterizes plan construction.
type Options struct {
	// Project names the stack instance; containers and the network are
	// labeled and named with it.
	Project string

	// OneShotService, if set, names the service whose completion ends the
	// run (the resetdb container). Every other service starts detached.
	OneShotService string
}

// postgresProbe is the health check injected into the Postgres step so the
// executor can gate dependents on the database accepting connections. The
// stack file itself declares no health check; the probe exists only at
// launch time.
func postgresProbe(user string) *compose.HealthCheck {
	return &compose.HealthCheck{
		Test:        []string{"CMD-SHELL", fmt.Sprintf("pg_isready -U %s", user)},
		Interval:    (2 * time.Second).String(),
		Timeout:     (3 * time.Second).String(),
		Retries:     30,
		StartPeriod: (2 * time.Second).String(),
	}
}

// Build constructs the launch plan for a parsed stack.
func Build(stack *compose.ParsedStack, opts Options) (*LaunchPlan, error) {
	if opts.Project == "" {
		return nil, fmt.Errorf("project name is required")
	}
	if opts.OneShotService != "" && stack.Service(opts.OneShotService) == nil {
		return nil, fmt.Errorf("one-shot service %q is not in the stack", opts.OneShotService)
	}

	ordered := TopologicalSort(stack.Services)

	p := &LaunchPlan{
		Project:     opts.Project,
		NetworkName: NetworkName(opts.Project),
		Steps:       make([]Step, 0, len(ordered)),
	}

	for _, vol := range stack.Volumes {
		if vol.External {
			continue
		}
		p.Volumes = append(p.Volumes, VolumeName(opts.Project, vol.Name))
	}

	for _, svc := range ordered {
		step := Step{
			Service:       svc,
			ContainerName: ContainerName(opts.Project, svc.Name),
			OneShot:       svc.Name == opts.OneShotService,
		}

		// Anything another service depends on must be ready before that
		// service starts. Postgres gets a pg_isready probe if the stack
		// declares none.
		if isDependedOn(stack.Services, svc.Name) {
			step.WaitHealthy = true
			if step.Service.HealthCheck == nil && isPostgres(svc) {
				step.Service.HealthCheck = postgresProbe(postgresUser(svc))
			}
			// Without any health check there is nothing to wait on.
			if step.Service.HealthCheck == nil {
				step.WaitHealthy = false
			}
		}

		p.Steps = append(p.Steps, step)
	}

	return p, nil
}

// OneShotStep returns the plan's one-shot step, or nil.
func (p *LaunchPlan) OneShotStep() *Step {
	for i := range p.Steps {
		if p.Steps[i].OneShot {
			return &p.Steps[i]
		}
	}
	return nil
}

func isDependedOn(services []compose.Service, name string) bool {
	for _, svc := range services {
		for _, dep := range svc.DependsOn {
			if dep == name {
				return true
			}
		}
	}
	return false
}

func isPostgres(svc compose.Service) bool {
	return svc.Name == "postgres" || svc.Environment["POSTGRES_DB"] != ""
}

func postgresUser(svc compose.Service) string {
	if user := svc.Environment["POSTGRES_USER"]; user != "" {
		return user
	}
	return "postgres"
}
