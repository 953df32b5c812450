package monitoring

import (
	"testing"

	"github.com/lakeward/airlocal/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

// =============================================================================
// AggregateHealth Tests
// =============================================================================

func TestAggregateHealth_Empty(t *testing.T) {
	assert.Equal(t, domain.HealthStatusUnknown, AggregateHealth(nil))
}

func TestAggregateHealth(t *testing.T) {
	tests := []struct {
		name       string
		containers []domain.ContainerHealth
		want       domain.HealthStatus
	}{
		{
			name: "all healthy",
			containers: []domain.ContainerHealth{
				{ServiceName: "postgres", Health: domain.HealthStatusHealthy},
				{ServiceName: "local-runner", Health: domain.HealthStatusHealthy},
			},
			want: domain.HealthStatusHealthy,
		},
		{
			name: "all unhealthy",
			containers: []domain.ContainerHealth{
				{ServiceName: "postgres", Health: domain.HealthStatusUnhealthy},
				{ServiceName: "local-runner", Health: domain.HealthStatusUnhealthy},
			},
			want: domain.HealthStatusUnhealthy,
		},
		{
			name: "one unhealthy degrades the stack",
			containers: []domain.ContainerHealth{
				{ServiceName: "postgres", Health: domain.HealthStatusHealthy},
				{ServiceName: "local-runner", Health: domain.HealthStatusUnhealthy},
			},
			want: domain.HealthStatusDegraded,
		},
		{
			name: "unknown counts as degraded",
			containers: []domain.ContainerHealth{
				{ServiceName: "postgres", Health: domain.HealthStatusHealthy},
				{ServiceName: "local-runner", Health: domain.HealthStatusUnknown},
			},
			want: domain.HealthStatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AggregateHealth(tt.containers))
		})
	}
}

// =============================================================================
// DetermineContainerHealth Tests
// =============================================================================

func TestDetermineContainerHealth(t *testing.T) {
	healthy := "healthy"
	unhealthy := "unhealthy"
	starting := "starting"

	tests := []struct {
		name        string
		status      string
		healthCheck *string
		restarts    int
		want        domain.HealthStatus
	}{
		{"running without check", "running", nil, 0, domain.HealthStatusHealthy},
		{"running healthy check", "running", &healthy, 0, domain.HealthStatusHealthy},
		{"exited", "exited", nil, 0, domain.HealthStatusUnhealthy},
		{"created", "created", nil, 0, domain.HealthStatusUnhealthy},
		{"running unhealthy check", "running", &unhealthy, 0, domain.HealthStatusUnhealthy},
		{"check still starting", "running", &starting, 0, domain.HealthStatusDegraded},
		{"restart churn", "running", nil, 4, domain.HealthStatusDegraded},
		{"few restarts ok", "running", nil, 3, domain.HealthStatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetermineContainerHealth(tt.status, tt.healthCheck, tt.restarts))
		})
	}
}
