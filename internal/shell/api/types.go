package api

import (
	"github.com/lakeward/airlocal/internal/core/domain"
)

// =============================================================================
// Response Types
// =============================================================================

// StatusResponse reports the current state of the stack.
type StatusResponse struct {
	Project    string                   `json:"project"`
	Health     domain.HealthStatus      `json:"health"`
	Containers []ContainerStatus        `json:"containers"`
	Services   []domain.ContainerHealth `json:"services,omitempty"`
}

// ContainerStatus is one container's view in the status response.
type ContainerStatus struct {
	ID      string               `json:"id"`
	Service string               `json:"service"`
	Image   string               `json:"image"`
	Status  string               `json:"status"`
	Ports   []domain.PortMapping `json:"ports,omitempty"`
}

// RunsResponse lists recorded runs.
type RunsResponse struct {
	Runs []domain.Run `json:"runs"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
