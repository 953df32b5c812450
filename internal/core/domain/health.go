package domain

// HealthStatus represents aggregated or per-container health.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// ContainerHealth pairs a service name with its observed health.
type ContainerHealth struct {
	ServiceName string       `json:"service_name"`
	Health      HealthStatus `json:"health"`
	Restarts    int          `json:"restarts"`
}

// StackHealth is the aggregated health of a running stack.
type StackHealth struct {
	Status     HealthStatus      `json:"status"`
	Containers []ContainerHealth `json:"containers,omitempty"`
}
