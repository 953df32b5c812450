package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lakeward/airlocal/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReporter struct {
	mu      sync.Mutex
	results []*domain.StackHealth
	err     error
	calls   int
}

func (s *scriptedReporter) StackHealth(ctx context.Context, project string) (*domain.StackHealth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	idx := s.calls - 1
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	return s.results[idx], nil
}

func (s *scriptedReporter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func healthySnapshot() *domain.StackHealth {
	return &domain.StackHealth{
		Status: domain.HealthStatusHealthy,
		Containers: []domain.ContainerHealth{
			{ServiceName: "postgres", Health: domain.HealthStatusHealthy},
			{ServiceName: "local-runner", Health: domain.HealthStatusHealthy},
		},
	}
}

func TestMonitor_PollsOnStart(t *testing.T) {
	reporter := &scriptedReporter{results: []*domain.StackHealth{healthySnapshot()}}
	m := NewMonitor(reporter, "airflow", MonitorConfig{Interval: time.Hour}, nil)

	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		return m.Current() != nil
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, domain.HealthStatusHealthy, m.Current().Status)
	assert.Equal(t, 1, reporter.callCount())
}

func TestMonitor_TicksAtInterval(t *testing.T) {
	reporter := &scriptedReporter{results: []*domain.StackHealth{healthySnapshot()}}
	m := NewMonitor(reporter, "airflow", MonitorConfig{Interval: 20 * time.Millisecond}, nil)

	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		return reporter.callCount() >= 3
	}, time.Second, 10*time.Millisecond)
}

func TestMonitor_TracksTransitions(t *testing.T) {
	degraded := &domain.StackHealth{
		Status: domain.HealthStatusDegraded,
		Containers: []domain.ContainerHealth{
			{ServiceName: "postgres", Health: domain.HealthStatusHealthy},
			{ServiceName: "local-runner", Health: domain.HealthStatusUnhealthy},
		},
	}
	reporter := &scriptedReporter{results: []*domain.StackHealth{healthySnapshot(), degraded}}
	m := NewMonitor(reporter, "airflow", MonitorConfig{Interval: 20 * time.Millisecond}, nil)

	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		current := m.Current()
		return current != nil && current.Status == domain.HealthStatusDegraded
	}, time.Second, 10*time.Millisecond)
}

func TestMonitor_PollErrorKeepsLastSnapshot(t *testing.T) {
	reporter := &scriptedReporter{results: []*domain.StackHealth{healthySnapshot()}}
	m := NewMonitor(reporter, "airflow", MonitorConfig{Interval: time.Hour}, nil)

	m.Start()
	require.Eventually(t, func() bool {
		return m.Current() != nil
	}, time.Second, 10*time.Millisecond)
	m.Stop()

	reporter.mu.Lock()
	reporter.err = errors.New("daemon unreachable")
	reporter.mu.Unlock()

	_, err := m.PollNow(context.Background())
	require.Error(t, err)
	assert.NotNil(t, m.Current())
}

func TestMonitor_PollNow(t *testing.T) {
	reporter := &scriptedReporter{results: []*domain.StackHealth{healthySnapshot()}}
	m := NewMonitor(reporter, "airflow", DefaultMonitorConfig(), nil)

	health, err := m.PollNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusHealthy, health.Status)
	assert.Same(t, health, m.Current())
}

func TestMonitor_StopIsIdempotentBeforeStart(t *testing.T) {
	m := NewMonitor(&scriptedReporter{results: []*domain.StackHealth{healthySnapshot()}}, "airflow", DefaultMonitorConfig(), nil)
	assert.NotPanics(t, func() { m.Stop() })
}
