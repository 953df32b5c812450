// Package monitoring provides pure functions for stack health evaluation.
// No I/O lives here; the workers feed it observed container state.
package monitoring

import "github.com/lakeward/airlocal/internal/core/domain"

// =============================================================================
// Health Aggregation
// =============================================================================

// AggregateHealth determines overall stack health from container states.
func AggregateHealth(containers []domain.ContainerHealth) domain.HealthStatus {
	if len(containers) == 0 {
		return domain.HealthStatusUnknown
	}

	unhealthy := 0
	degraded := 0

	for _, c := range containers {
		switch c.Health {
		case domain.HealthStatusUnhealthy:
			unhealthy++
		case domain.HealthStatusDegraded:
			degraded++
		case domain.HealthStatusUnknown:
			// Unknown containers count as degraded
			degraded++
		}
	}

	if unhealthy == len(containers) {
		return domain.HealthStatusUnhealthy
	}
	if unhealthy > 0 || degraded > 0 {
		return domain.HealthStatusDegraded
	}
	return domain.HealthStatusHealthy
}

// DetermineContainerHealth maps observed container state to a health status.
//
// Parameters:
//   - status: container status (running, exited, created, restarting)
//   - healthCheck: Docker health check result when the container has one
//     (healthy, unhealthy, starting), nil otherwise
//   - restarts: restarts since container creation
func DetermineContainerHealth(status string, healthCheck *string, restarts int) domain.HealthStatus {
	if status != "running" {
		return domain.HealthStatusUnhealthy
	}

	if healthCheck != nil && *healthCheck == "unhealthy" {
		return domain.HealthStatusUnhealthy
	}

	// Restart churn indicates instability
	if restarts > 3 {
		return domain.HealthStatusDegraded
	}

	if healthCheck != nil && *healthCheck == "starting" {
		return domain.HealthStatusDegraded
	}

	return domain.HealthStatusHealthy
}
