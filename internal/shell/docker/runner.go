package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/lakeward/airlocal/internal/core/compose"
	"github.com/lakeward/airlocal/internal/core/domain"
	"github.com/lakeward/airlocal/internal/core/monitoring"
	"github.com/lakeward/airlocal/internal/core/plan"
)

// =============================================================================
// Labels
// =============================================================================

const (
	// LabelProject marks every resource belonging to an airlocal project.
	LabelProject = "com.airlocal.project"
	// LabelService records the stack service a container was created for.
	LabelService = "com.airlocal.service"
	// LabelRun records the run that created a container.
	LabelRun = "com.airlocal.run"
)

// DefaultReadyTimeout bounds the wait for a gated service to become healthy.
const DefaultReadyTimeout = 60 * time.Second

const readyProbeInterval = time.Second

// =============================================================================
// Runner - Executes Launch Plans
// =============================================================================

// Runner executes launch plans against the Docker Engine and manages the
// resulting project resources.
type Runner struct {
	docker Client
	logger *slog.Logger
}

// NewRunner creates a new runner.
func NewRunner(docker Client, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		docker: docker,
		logger: logger,
	}
}

// ExecuteOptions tunes a single plan execution.
type ExecuteOptions struct {
	// RunID labels the created containers with the owning run.
	RunID string

	// ReadyTimeout bounds each readiness gate. Zero means DefaultReadyTimeout.
	ReadyTimeout time.Duration

	// LogOutput receives the one-shot container's log stream. Nil discards.
	LogOutput io.Writer
}

// ExecuteResult reports what a plan execution produced.
type ExecuteResult struct {
	Containers []domain.ContainerInfo

	// ExitCode is set when the plan had a one-shot step: the container's
	// exit code, which is the run's outcome.
	ExitCode *int
}

// Execute runs a launch plan: network, named volumes, then each service in
// dependency order. Gated services are waited on; the one-shot service is
// run to completion with its logs streamed.
func (r *Runner) Execute(ctx context.Context, p *plan.LaunchPlan, opts ExecuteOptions) (*ExecuteResult, error) {
	if opts.ReadyTimeout == 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}

	r.logger.Info("executing launch plan",
		"project", p.Project,
		"services", len(p.Steps),
		"run_id", opts.RunID,
	)

	labels := map[string]string{LabelProject: p.Project}

	// 1. Project network
	if _, err := r.docker.CreateNetwork(NetworkSpec{Name: p.NetworkName, Labels: labels}); err != nil {
		if !errors.Is(err, ErrNetworkAlreadyExists) {
			return nil, fmt.Errorf("create network: %w", err)
		}
	}
	r.logger.Debug("network ready", "network", p.NetworkName)

	// 2. Named volumes
	for _, vol := range p.Volumes {
		if _, err := r.docker.CreateVolume(VolumeSpec{Name: vol, Labels: labels}); err != nil {
			return nil, fmt.Errorf("create volume %s: %w", vol, err)
		}
	}

	// 3. Services in dependency order
	result := &ExecuteResult{}
	created := make(map[string]string) // serviceName -> containerID

	for _, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			r.cleanupCreated(created)
			return nil, err
		}

		containerID, err := r.launchStep(ctx, p, step, opts)
		if err != nil {
			r.cleanupCreated(created)
			return nil, err
		}
		created[step.Service.Name] = containerID

		info := domain.ContainerInfo{
			ID:          containerID,
			ServiceName: step.Service.Name,
			Image:       step.Service.Image,
			Status:      "running",
		}

		if step.WaitHealthy {
			if err := r.waitHealthy(ctx, step.Service.Name, containerID, opts.ReadyTimeout); err != nil {
				r.cleanupCreated(created)
				return nil, err
			}
			r.logger.Info("service ready", "service", step.Service.Name)
		}

		if step.OneShot {
			exitCode, err := r.runToCompletion(ctx, containerID, opts.LogOutput)
			if err != nil {
				return nil, err
			}
			info.Status = "exited"
			result.ExitCode = &exitCode
			r.logger.Info("one-shot service finished",
				"service", step.Service.Name,
				"exit_code", exitCode,
			)
		}

		result.Containers = append(result.Containers, info)
	}

	return result, nil
}

// launchStep creates and starts one container, replacing any stale container
// left over from a previous run of the same service.
func (r *Runner) launchStep(ctx context.Context, p *plan.LaunchPlan, step plan.Step, opts ExecuteOptions) (string, error) {
	svc := step.Service

	// Pull the image unless it is already present. A failed pull is not
	// fatal when a local copy exists.
	exists, _ := r.docker.ImageExists(svc.Image)
	if !exists {
		r.logger.Info("pulling image", "image", svc.Image)
		if err := r.docker.PullImage(svc.Image, PullOptions{}); err != nil {
			return "", fmt.Errorf("pull image %s: %w", svc.Image, err)
		}
	}

	// Replace stale containers from earlier runs
	stale, _ := r.docker.ListContainers(ListOptions{
		All: true,
		Filters: map[string]string{
			"label": fmt.Sprintf("%s=%s", LabelProject, p.Project),
			"name":  step.ContainerName,
		},
	})
	for _, c := range stale {
		r.logger.Debug("removing stale container", "container", c.Name)
		_ = r.docker.RemoveContainer(c.ID, RemoveOptions{Force: true})
	}

	spec := r.buildContainerSpec(p, step, opts.RunID)

	containerID, err := r.docker.CreateContainer(spec)
	if err != nil {
		return "", fmt.Errorf("create container for %s: %w", svc.Name, err)
	}

	if err := r.docker.StartContainer(containerID); err != nil {
		_ = r.docker.RemoveContainer(containerID, RemoveOptions{Force: true})
		return "", fmt.Errorf("start container for %s: %w", svc.Name, err)
	}

	r.logger.Debug("started container",
		"service", svc.Name,
		"container", step.ContainerName,
	)

	return containerID, nil
}

// buildContainerSpec converts a plan step into a container spec.
func (r *Runner) buildContainerSpec(p *plan.LaunchPlan, step plan.Step, runID string) ContainerSpec {
	svc := step.Service

	spec := ContainerSpec{
		Name:       step.ContainerName,
		Image:      svc.Image,
		Command:    svc.Command,
		Entrypoint: svc.Entrypoint,
		Env:        svc.Environment,
		Labels: map[string]string{
			LabelProject: p.Project,
			LabelService: svc.Name,
		},
		Networks: []string{p.NetworkName},
		// The service name resolves over the project network, so the
		// runner reaches the database at host "postgres".
		NetworkAliases: map[string][]string{
			p.NetworkName: {svc.Name},
		},
	}

	if runID != "" {
		spec.Labels[LabelRun] = runID
	}

	for k, v := range svc.Labels {
		spec.Labels[k] = v
	}

	for _, port := range svc.Ports {
		spec.Ports = append(spec.Ports, PortBinding{
			ContainerPort: int(port.Target),
			HostPort:      int(port.Published),
			Protocol:      port.Protocol,
			HostIP:        port.HostIP,
		})
	}

	for _, mnt := range svc.Volumes {
		source := mnt.Source
		if mnt.Type == compose.VolumeMountTypeVolume {
			source = plan.VolumeName(p.Project, mnt.Source)
		}
		spec.Volumes = append(spec.Volumes, VolumeMount{
			Source:   source,
			Target:   mnt.Target,
			ReadOnly: mnt.ReadOnly,
		})
	}

	if svc.Restart != "" {
		spec.RestartPolicy = RestartPolicy{Name: svc.Restart}
	}

	if svc.Logging != nil {
		spec.LogConfig = &LogConfig{
			Driver:  svc.Logging.Driver,
			Options: svc.Logging.Options,
		}
	}

	if svc.HealthCheck != nil {
		spec.HealthCheck = convertHealthCheck(svc.HealthCheck)
	}

	return spec
}

func convertHealthCheck(hc *compose.HealthCheck) *HealthCheck {
	converted := &HealthCheck{
		Test:    hc.Test,
		Retries: hc.Retries,
	}
	if d, err := time.ParseDuration(hc.Interval); err == nil {
		converted.Interval = d
	}
	if d, err := time.ParseDuration(hc.Timeout); err == nil {
		converted.Timeout = d
	}
	if d, err := time.ParseDuration(hc.StartPeriod); err == nil {
		converted.StartPeriod = d
	}
	return converted
}

// waitHealthy polls a container until its health check reports healthy.
func (r *Runner) waitHealthy(ctx context.Context, service, containerID string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		info, err := r.docker.InspectContainer(containerID)
		if err != nil {
			return fmt.Errorf("inspect %s: %w", service, err)
		}

		if info.State == "exited" || info.State == "dead" {
			return NewDockerError("WaitHealthy", "container", containerID,
				fmt.Sprintf("%s exited with code %d before becoming ready", service, info.ExitCode), ErrNotReady)
		}
		if info.Health == "healthy" {
			return nil
		}
		// Running with no health check: nothing more to wait on
		if info.Health == "" && info.State == "running" {
			return nil
		}

		if time.Now().After(deadline) {
			return NewDockerError("WaitHealthy", "container", containerID,
				fmt.Sprintf("%s did not become ready within %s", service, timeout), ErrNotReady)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyProbeInterval):
		}
	}
}

// runToCompletion streams a one-shot container's logs and waits for exit.
func (r *Runner) runToCompletion(ctx context.Context, containerID string, logOutput io.Writer) (int, error) {
	if logOutput == nil {
		logOutput = io.Discard
	}

	logs, err := r.docker.ContainerLogs(containerID, LogOptions{Follow: true, Tail: "all"})
	if err != nil {
		return 0, err
	}
	defer logs.Close()

	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		// The log stream is multiplexed stdout/stderr
		_, _ = stdcopy.StdCopy(logOutput, logOutput, logs)
	}()

	exitCode, err := r.docker.WaitContainer(ctx, containerID)
	if err != nil {
		return 0, err
	}

	// Let the remaining buffered output drain
	select {
	case <-streamDone:
	case <-time.After(2 * time.Second):
	}

	return exitCode, nil
}

// cleanupCreated force-removes containers created during a failed execution.
func (r *Runner) cleanupCreated(created map[string]string) {
	for service, containerID := range created {
		r.logger.Debug("cleaning up container", "service", service)
		_ = r.docker.RemoveContainer(containerID, RemoveOptions{Force: true})
	}
}

// =============================================================================
// Project Lifecycle
// =============================================================================

// Down stops and removes a project's containers and network. Named volumes
// are kept unless removeVolumes is set; bind-mounted data is never touched.
func (r *Runner) Down(ctx context.Context, project string, removeVolumes bool) error {
	containers, err := r.docker.ListContainers(ListOptions{
		All: true,
		Filters: map[string]string{
			"label": fmt.Sprintf("%s=%s", LabelProject, project),
		},
	})
	if err != nil {
		return err
	}

	stopTimeout := 10 * time.Second
	for _, c := range containers {
		r.logger.Info("stopping container", "container", c.Name)
		if err := r.docker.StopContainer(c.ID, &stopTimeout); err != nil {
			if !errors.Is(err, ErrContainerNotRunning) && !errors.Is(err, ErrContainerNotFound) {
				r.logger.Warn("failed to stop container", "container", c.Name, "error", err)
			}
		}
		if err := r.docker.RemoveContainer(c.ID, RemoveOptions{Force: true, RemoveVolumes: removeVolumes}); err != nil {
			r.logger.Warn("failed to remove container", "container", c.Name, "error", err)
		}
	}

	// NetworkRemove accepts a name as well as an ID
	if err := r.docker.RemoveNetwork(plan.NetworkName(project)); err != nil {
		if !errors.Is(err, ErrNetworkNotFound) {
			return fmt.Errorf("remove network: %w", err)
		}
	}

	r.logger.Info("project down", "project", project, "containers", len(containers))
	return nil
}

// Status returns the project's containers with their current state.
func (r *Runner) Status(ctx context.Context, project string) ([]domain.ContainerInfo, error) {
	containers, err := r.docker.ListContainers(ListOptions{
		All: true,
		Filters: map[string]string{
			"label": fmt.Sprintf("%s=%s", LabelProject, project),
		},
	})
	if err != nil {
		return nil, err
	}

	result := make([]domain.ContainerInfo, 0, len(containers))
	for _, c := range containers {
		result = append(result, domain.ContainerInfo{
			ID:          c.ID,
			ServiceName: c.Labels[LabelService],
			Image:       c.Image,
			Status:      c.State,
			Ports:       convertPorts(c.Ports),
		})
	}

	return result, nil
}

// StackHealth inspects the project's containers and aggregates their health.
func (r *Runner) StackHealth(ctx context.Context, project string) (*domain.StackHealth, error) {
	containers, err := r.docker.ListContainers(ListOptions{
		All: true,
		Filters: map[string]string{
			"label": fmt.Sprintf("%s=%s", LabelProject, project),
		},
	})
	if err != nil {
		return nil, err
	}

	health := &domain.StackHealth{}
	for _, c := range containers {
		info, err := r.docker.InspectContainer(c.ID)
		if err != nil {
			health.Containers = append(health.Containers, domain.ContainerHealth{
				ServiceName: c.Labels[LabelService],
				Health:      domain.HealthStatusUnknown,
			})
			continue
		}

		var check *string
		if info.Health != "" {
			check = &info.Health
		}
		health.Containers = append(health.Containers, domain.ContainerHealth{
			ServiceName: c.Labels[LabelService],
			Health:      monitoring.DetermineContainerHealth(info.State, check, info.Restarts),
			Restarts:    info.Restarts,
		})
	}

	health.Status = monitoring.AggregateHealth(health.Containers)
	return health, nil
}

// Logs returns the log stream for one of the project's services.
func (r *Runner) Logs(ctx context.Context, project, service string, opts LogOptions) (io.ReadCloser, error) {
	containers, err := r.docker.ListContainers(ListOptions{
		All: true,
		Filters: map[string]string{
			"label": fmt.Sprintf("%s=%s", LabelProject, project),
		},
	})
	if err != nil {
		return nil, err
	}

	for _, c := range containers {
		if c.Labels[LabelService] == service {
			return r.docker.ContainerLogs(c.ID, opts)
		}
	}

	return nil, NewDockerError("Logs", "container", service, "no container for service", ErrContainerNotFound)
}

// convertPorts converts client port bindings to domain port mappings.
func convertPorts(ports []PortBinding) []domain.PortMapping {
	if len(ports) == 0 {
		return nil
	}
	result := make([]domain.PortMapping, 0, len(ports))
	for _, p := range ports {
		proto := p.Protocol
		if proto == "" {
			proto = "tcp"
		}
		result = append(result, domain.PortMapping{
			ContainerPort: p.ContainerPort,
			HostPort:      p.HostPort,
			Protocol:      proto,
		})
	}
	return result
}
