package docker

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lakeward/airlocal/internal/core/domain"
	"github.com/lakeward/airlocal/internal/core/plan"
	"github.com/lakeward/airlocal/internal/core/stack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Fake Client
// =============================================================================

type fakeClient struct {
	mu sync.Mutex

	created    []ContainerSpec
	started    []string
	stopped    []string
	removed    []string
	networks   []NetworkSpec
	volumes    []VolumeSpec
	pulled     []string
	nextID     int
	imageLocal bool

	// Behavior hooks
	inspectFn    func(containerID string) (*ContainerInfo, error)
	listResult   []ContainerInfo
	waitCode     int
	waitErr      error
	logStream    []byte
	networkErr   error
	createErr    error
	removeNetErr error
}

func newFakeClient() *fakeClient {
	f := &fakeClient{imageLocal: true}
	f.inspectFn = func(containerID string) (*ContainerInfo, error) {
		return &ContainerInfo{ID: containerID, State: "running", Health: "healthy"}, nil
	}
	return f
}

func (f *fakeClient) CreateContainer(spec ContainerSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	f.created = append(f.created, spec)
	return fmt.Sprintf("ctr-%d", f.nextID), nil
}

func (f *fakeClient) StartContainer(containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, containerID)
	return nil
}

func (f *fakeClient) StopContainer(containerID string, timeout *time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, containerID)
	return nil
}

func (f *fakeClient) RemoveContainer(containerID string, opts RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, containerID)
	return nil
}

func (f *fakeClient) InspectContainer(containerID string) (*ContainerInfo, error) {
	return f.inspectFn(containerID)
}

func (f *fakeClient) ListContainers(opts ListOptions) ([]ContainerInfo, error) {
	return f.listResult, nil
}

func (f *fakeClient) ContainerLogs(containerID string, opts LogOptions) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.logStream)), nil
}

func (f *fakeClient) WaitContainer(ctx context.Context, containerID string) (int, error) {
	return f.waitCode, f.waitErr
}

func (f *fakeClient) CreateNetwork(spec NetworkSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.networkErr != nil {
		return "", f.networkErr
	}
	f.networks = append(f.networks, spec)
	return "net-1", nil
}

func (f *fakeClient) RemoveNetwork(networkID string) error { return f.removeNetErr }

func (f *fakeClient) CreateVolume(spec VolumeSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes = append(f.volumes, spec)
	return spec.Name, nil
}

func (f *fakeClient) RemoveVolume(volumeName string, force bool) error { return nil }

func (f *fakeClient) PullImage(image string, opts PullOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulled = append(f.pulled, image)
	return nil
}

func (f *fakeClient) ImageExists(image string) (bool, error) { return f.imageLocal, nil }
func (f *fakeClient) Ping() error                            { return nil }
func (f *fakeClient) Close() error                           { return nil }

// =============================================================================
// Helpers
// =============================================================================

func resetPlan(t *testing.T) *plan.LaunchPlan {
	t.Helper()
	built, err := stack.Build(stack.ModeResetDB, stack.DefaultOptions("/home/dev/airflow"))
	require.NoError(t, err)

	p, err := plan.Build(built, plan.Options{
		Project:        "airflow",
		OneShotService: stack.ResetDBService,
	})
	require.NoError(t, err)
	return p
}

// stdoutFrame wraps a payload in the multiplexed log stream framing.
func stdoutFrame(payload string) []byte {
	header := make([]byte, 8)
	header[0] = 1 // stdout
	binary.BigEndian.PutUint32(header[4:], uint32(len(payload)))
	return append(header, payload...)
}

// =============================================================================
// Execute Tests
// =============================================================================

func TestExecute_ResetPlan(t *testing.T) {
	fake := newFakeClient()
	runner := NewRunner(fake, nil)

	result, err := runner.Execute(context.Background(), resetPlan(t), ExecuteOptions{RunID: "run-1"})
	require.NoError(t, err)

	// Network created with the project label
	require.Len(t, fake.networks, 1)
	assert.Equal(t, "airlocal_airflow", fake.networks[0].Name)
	assert.Equal(t, "airflow", fake.networks[0].Labels[LabelProject])

	// Postgres before resetdb
	require.Len(t, fake.created, 2)
	assert.Equal(t, "airlocal_airflow_postgres", fake.created[0].Name)
	assert.Equal(t, "airlocal_airflow_resetdb", fake.created[1].Name)
	assert.Len(t, fake.started, 2)

	// One-shot outcome recorded
	require.NotNil(t, result.ExitCode)
	assert.Equal(t, 0, *result.ExitCode)
	require.Len(t, result.Containers, 2)
	assert.Equal(t, "postgres", result.Containers[0].ServiceName)
	assert.Equal(t, "resetdb", result.Containers[1].ServiceName)
	assert.Equal(t, "exited", result.Containers[1].Status)
}

func TestExecute_ContainerSpecShape(t *testing.T) {
	fake := newFakeClient()
	runner := NewRunner(fake, nil)

	_, err := runner.Execute(context.Background(), resetPlan(t), ExecuteOptions{RunID: "run-7"})
	require.NoError(t, err)

	pg := fake.created[0]
	assert.Equal(t, "postgres:10-alpine", pg.Image)
	assert.Equal(t, "airflow", pg.Env["POSTGRES_USER"])
	assert.Equal(t, "postgres", pg.Labels[LabelService])
	assert.Equal(t, "run-7", pg.Labels[LabelRun])
	assert.Equal(t, []string{"airlocal_airflow"}, pg.Networks)
	assert.Equal(t, []string{"postgres"}, pg.NetworkAliases["airlocal_airflow"])
	require.NotNil(t, pg.HealthCheck)
	require.NotNil(t, pg.LogConfig)
	assert.Equal(t, "10m", pg.LogConfig.Options["max-size"])
	assert.Equal(t, "3", pg.LogConfig.Options["max-file"])
	require.Len(t, pg.Volumes, 1)
	assert.Equal(t, "/home/dev/airflow/db-data", pg.Volumes[0].Source)

	reset := fake.created[1]
	assert.Equal(t, []string{"resetdb"}, reset.Command)
	require.Len(t, reset.Ports, 1)
	assert.Equal(t, 8080, reset.Ports[0].ContainerPort)
	assert.Equal(t, 8080, reset.Ports[0].HostPort)
}

func TestExecute_NonZeroExitCode(t *testing.T) {
	fake := newFakeClient()
	fake.waitCode = 3
	runner := NewRunner(fake, nil)

	result, err := runner.Execute(context.Background(), resetPlan(t), ExecuteOptions{})
	require.NoError(t, err)
	require.NotNil(t, result.ExitCode)
	assert.Equal(t, 3, *result.ExitCode)
}

func TestExecute_StreamsOneShotLogs(t *testing.T) {
	fake := newFakeClient()
	fake.logStream = stdoutFrame("Initialized the metadata database\n")
	runner := NewRunner(fake, nil)

	var out bytes.Buffer
	_, err := runner.Execute(context.Background(), resetPlan(t), ExecuteOptions{LogOutput: &out})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Initialized the metadata database")
}

func TestExecute_PullsMissingImages(t *testing.T) {
	fake := newFakeClient()
	fake.imageLocal = false
	runner := NewRunner(fake, nil)

	_, err := runner.Execute(context.Background(), resetPlan(t), ExecuteOptions{})
	require.NoError(t, err)
	assert.Contains(t, fake.pulled, "postgres:10-alpine")
	assert.Contains(t, fake.pulled, "amazon/mwaa-local:2.0")
}

func TestExecute_FailsWhenPostgresExitsEarly(t *testing.T) {
	fake := newFakeClient()
	fake.inspectFn = func(containerID string) (*ContainerInfo, error) {
		return &ContainerInfo{ID: containerID, State: "exited", ExitCode: 1}, nil
	}
	runner := NewRunner(fake, nil)

	_, err := runner.Execute(context.Background(), resetPlan(t), ExecuteOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotReady)

	// The failed launch is cleaned up
	assert.NotEmpty(t, fake.removed)
}

func TestExecute_ReadyTimeout(t *testing.T) {
	fake := newFakeClient()
	fake.inspectFn = func(containerID string) (*ContainerInfo, error) {
		return &ContainerInfo{ID: containerID, State: "running", Health: "starting"}, nil
	}
	runner := NewRunner(fake, nil)

	start := time.Now()
	_, err := runner.Execute(context.Background(), resetPlan(t), ExecuteOptions{
		ReadyTimeout: 50 * time.Millisecond,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecute_NetworkAlreadyExistsIsFine(t *testing.T) {
	fake := newFakeClient()
	fake.networkErr = NewDockerError("CreateNetwork", "network", "airlocal_airflow", "network already exists", ErrNetworkAlreadyExists)
	runner := NewRunner(fake, nil)

	_, err := runner.Execute(context.Background(), resetPlan(t), ExecuteOptions{})
	assert.NoError(t, err)
}

func TestExecute_CancelledContext(t *testing.T) {
	fake := newFakeClient()
	runner := NewRunner(fake, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Execute(ctx, resetPlan(t), ExecuteOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Down / Status / Logs Tests
// =============================================================================

func projectContainers() []ContainerInfo {
	return []ContainerInfo{
		{
			ID:     "ctr-1",
			Name:   "airlocal_airflow_postgres",
			Image:  "postgres:10-alpine",
			State:  "running",
			Labels: map[string]string{LabelProject: "airflow", LabelService: "postgres"},
		},
		{
			ID:     "ctr-2",
			Name:   "airlocal_airflow_local-runner",
			Image:  "amazon/mwaa-local:2.0",
			State:  "running",
			Labels: map[string]string{LabelProject: "airflow", LabelService: "local-runner"},
			Ports:  []PortBinding{{ContainerPort: 8080, HostPort: 8080}},
		},
	}
}

func TestDown(t *testing.T) {
	fake := newFakeClient()
	fake.listResult = projectContainers()
	runner := NewRunner(fake, nil)

	err := runner.Down(context.Background(), "airflow", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"ctr-1", "ctr-2"}, fake.stopped)
	assert.Equal(t, []string{"ctr-1", "ctr-2"}, fake.removed)
}

func TestDown_MissingNetworkIgnored(t *testing.T) {
	fake := newFakeClient()
	fake.removeNetErr = NewDockerError("RemoveNetwork", "network", "airlocal_airflow", "network not found", ErrNetworkNotFound)
	runner := NewRunner(fake, nil)

	assert.NoError(t, runner.Down(context.Background(), "airflow", false))
}

func TestStatus(t *testing.T) {
	fake := newFakeClient()
	fake.listResult = projectContainers()
	runner := NewRunner(fake, nil)

	infos, err := runner.Status(context.Background(), "airflow")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "postgres", infos[0].ServiceName)
	assert.Equal(t, "local-runner", infos[1].ServiceName)
	require.Len(t, infos[1].Ports, 1)
	assert.Equal(t, 8080, infos[1].Ports[0].HostPort)
	assert.Equal(t, "tcp", infos[1].Ports[0].Protocol)
}

func TestStackHealth(t *testing.T) {
	fake := newFakeClient()
	fake.listResult = projectContainers()
	fake.inspectFn = func(containerID string) (*ContainerInfo, error) {
		if containerID == "ctr-2" {
			return &ContainerInfo{ID: containerID, State: "exited"}, nil
		}
		return &ContainerInfo{ID: containerID, State: "running"}, nil
	}
	runner := NewRunner(fake, nil)

	health, err := runner.StackHealth(context.Background(), "airflow")
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusDegraded, health.Status)
	require.Len(t, health.Containers, 2)
}

func TestLogs_UnknownService(t *testing.T) {
	fake := newFakeClient()
	fake.listResult = projectContainers()
	runner := NewRunner(fake, nil)

	_, err := runner.Logs(context.Background(), "airflow", "webserver", LogOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContainerNotFound)
	assert.True(t, strings.Contains(err.Error(), "webserver"))
}

func TestLogs_KnownService(t *testing.T) {
	fake := newFakeClient()
	fake.listResult = projectContainers()
	runner := NewRunner(fake, nil)

	reader, err := runner.Logs(context.Background(), "airflow", "postgres", LogOptions{Tail: "100"})
	require.NoError(t, err)
	reader.Close()
}
