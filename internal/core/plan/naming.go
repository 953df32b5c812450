package plan

import "fmt"

// =============================================================================
// Resource Naming
// =============================================================================

// NetworkName generates the network name for a project.
// Pattern: airlocal_{project}
func NetworkName(project string) string {
	return fmt.Sprintf("airlocal_%s", project)
}

// ContainerName generates the container name for a service in a project.
// Pattern: airlocal_{project}_{serviceName}
func ContainerName(project, serviceName string) string {
	return fmt.Sprintf("airlocal_%s_%s", project, serviceName)
}

// VolumeName generates the name for a named volume in a project.
// Pattern: airlocal_{project}_{volumeName}
func VolumeName(project, volumeName string) string {
	return fmt.Sprintf("airlocal_%s_%s", project, volumeName)
}
