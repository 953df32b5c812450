package compose

import (
	"context"
	"strconv"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Parser Functions
// =============================================================================

// ParseStack parses Docker Compose YAML into a ParsedStack.
// This is a pure function - no I/O, no side effects.
func ParseStack(yamlContent string) (*ParsedStack, error) {
	return ParseStackWithEnv(yamlContent, nil)
}

// ParseStackWithEnv parses Docker Compose YAML, interpolating ${VAR}
// placeholders from the given environment. The dev stack files reference
// ${PWD} for bind-mount sources, so callers that run the stack pass the
// project directory here.
func ParseStackWithEnv(yamlContent string, env map[string]string) (*ParsedStack, error) {
	// Input validation
	if strings.TrimSpace(yamlContent) == "" {
		return nil, ErrEmptyInput
	}

	project, err := loadProject(yamlContent, env)
	if err != nil {
		return nil, err
	}

	if err := checkUnsupportedFeatures(project); err != nil {
		return nil, err
	}

	if len(project.Services) == 0 {
		return nil, ErrNoServices
	}

	stack := &ParsedStack{
		Services: make([]Service, 0, len(project.Services)),
		Networks: make([]Network, 0, len(project.Networks)),
		Volumes:  make([]Volume, 0, len(project.Volumes)),
	}

	for _, svc := range project.Services {
		converted, err := convertService(svc)
		if err != nil {
			return nil, err
		}
		stack.Services = append(stack.Services, converted)
	}

	if err := checkDependencies(stack.Services); err != nil {
		return nil, err
	}

	if err := validatePorts(stack.Services); err != nil {
		return nil, err
	}

	for name, net := range project.Networks {
		stack.Networks = append(stack.Networks, Network{
			Name:     name,
			Driver:   net.Driver,
			External: bool(net.External),
			Labels:   net.Labels,
		})
	}

	for name, vol := range project.Volumes {
		stack.Volumes = append(stack.Volumes, Volume{
			Name:     name,
			Driver:   vol.Driver,
			External: bool(vol.External),
			Labels:   vol.Labels,
		})
	}

	return stack, nil
}

// loadProject loads a compose project using compose-go.
func loadProject(yamlContent string, env map[string]string) (*types.Project, error) {
	// Parse YAML into a map first so syntax errors surface cleanly
	var dict map[string]interface{}
	if err := yaml.Unmarshal([]byte(yamlContent), &dict); err != nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}
	if dict == nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: []byte(yamlContent),
				Config:  dict,
			},
		},
		Environment: env,
	}, func(opts *loader.Options) {
		opts.SetProjectName("airlocal-temp", false)
		opts.SkipValidation = false
		opts.SkipInterpolation = false
		// In-memory content, no paths to resolve
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "dependency cycle detected") {
			return nil, NewParseError("", "circular dependency detected", ErrCircularDependency)
		}
		if strings.Contains(errStr, "image") && strings.Contains(errStr, "build") {
			return nil, NewParseError("", "service must have an image", ErrServiceNoImage)
		}
		return nil, NewParseError("", errStr, ErrInvalidYAML)
	}

	return project, nil
}

// checkUnsupportedFeatures rejects compose features the runner cannot honor.
func checkUnsupportedFeatures(project *types.Project) error {
	if len(project.Secrets) > 0 {
		return NewParseError("secrets", "secrets are not supported", ErrUnsupportedFeature)
	}
	if len(project.Configs) > 0 {
		return NewParseError("configs", "configs are not supported", ErrUnsupportedFeature)
	}
	for _, svc := range project.Services {
		if svc.Build != nil {
			return NewParseError("services."+svc.Name+".build", "build is not supported, use an image", ErrUnsupportedFeature)
		}
		if svc.Extends != nil && svc.Extends.File != "" {
			return NewParseError("services."+svc.Name+".extends", "extends is not supported", ErrUnsupportedFeature)
		}
	}
	return nil
}

// convertService converts a compose-go service to our Service type.
func convertService(svc types.ServiceConfig) (Service, error) {
	service := Service{
		Name:        svc.Name,
		Image:       svc.Image,
		Command:     svc.Command,
		Entrypoint:  svc.Entrypoint,
		Environment: make(map[string]string),
		Labels:      make(map[string]string),
		DependsOn:   make([]string, 0),
		Restart:     svc.Restart,
	}

	if service.Image == "" {
		return Service{}, NewParseError("services."+svc.Name, "service must have an image", ErrServiceNoImage)
	}

	// Ports
	for i, p := range svc.Ports {
		var published uint32
		if p.Published != "" {
			pub, err := strconv.ParseUint(p.Published, 10, 32)
			if err != nil {
				return Service{}, NewParseError(
					"services."+svc.Name+".ports["+strconv.Itoa(i)+"]",
					"published port must be a single number, got "+strconv.Quote(p.Published),
					ErrServiceInvalidPort,
				)
			}
			published = uint32(pub)
		}
		service.Ports = append(service.Ports, Port{
			Target:    p.Target,
			Published: published,
			Protocol:  p.Protocol,
			HostIP:    p.HostIP,
		})
	}

	// Environment
	for k, v := range svc.Environment {
		if v != nil {
			service.Environment[k] = *v
		}
	}

	// Volumes
	for _, v := range svc.Volumes {
		mount := VolumeMount{
			Source:   v.Source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		}
		switch v.Type {
		case "bind":
			mount.Type = VolumeMountTypeBind
		case "volume":
			mount.Type = VolumeMountTypeVolume
		case "tmpfs":
			mount.Type = VolumeMountTypeTmpfs
		default:
			// Infer type from source
			if strings.HasPrefix(v.Source, "./") || strings.HasPrefix(v.Source, "/") ||
				strings.HasPrefix(v.Source, "~") || strings.HasPrefix(v.Source, "${") {
				mount.Type = VolumeMountTypeBind
			} else {
				mount.Type = VolumeMountTypeVolume
			}
		}
		service.Volumes = append(service.Volumes, mount)
	}

	// DependsOn
	for dep := range svc.DependsOn {
		service.DependsOn = append(service.DependsOn, dep)
	}

	// Logging
	if svc.Logging != nil {
		service.Logging = &Logging{
			Driver:  svc.Logging.Driver,
			Options: svc.Logging.Options,
		}
	}

	// Labels
	for k, v := range svc.Labels {
		service.Labels[k] = v
	}

	// HealthCheck
	if svc.HealthCheck != nil && !svc.HealthCheck.Disable {
		service.HealthCheck = &HealthCheck{
			Test: svc.HealthCheck.Test,
		}
		if svc.HealthCheck.Retries != nil {
			service.HealthCheck.Retries = int(*svc.HealthCheck.Retries)
		}
		if svc.HealthCheck.Interval != nil {
			service.HealthCheck.Interval = svc.HealthCheck.Interval.String()
		}
		if svc.HealthCheck.Timeout != nil {
			service.HealthCheck.Timeout = svc.HealthCheck.Timeout.String()
		}
		if svc.HealthCheck.StartPeriod != nil {
			service.HealthCheck.StartPeriod = svc.HealthCheck.StartPeriod.String()
		}
	}

	return service, nil
}

// checkDependencies validates that depends_on edges point at declared
// services and contain no cycles.
func checkDependencies(services []Service) error {
	known := make(map[string]bool, len(services))
	for _, svc := range services {
		known[svc.Name] = true
	}

	deps := make(map[string][]string)
	for _, svc := range services {
		for _, dep := range svc.DependsOn {
			if !known[dep] {
				return NewParseError(
					"services."+svc.Name+".depends_on",
					"unknown service "+strconv.Quote(dep),
					ErrUnknownDependency,
				)
			}
		}
		deps[svc.Name] = svc.DependsOn
	}

	// DFS cycle detection
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var hasCycle func(node string) bool
	hasCycle = func(node string) bool {
		visited[node] = true
		recStack[node] = true

		for _, dep := range deps[node] {
			if dep == node {
				return true
			}
			if !visited[dep] {
				if hasCycle(dep) {
					return true
				}
			} else if recStack[dep] {
				return true
			}
		}

		recStack[node] = false
		return false
	}

	for _, svc := range services {
		if !visited[svc.Name] {
			if hasCycle(svc.Name) {
				return ErrCircularDependency
			}
		}
	}

	return nil
}

// validatePorts validates all port configurations.
func validatePorts(services []Service) error {
	for _, svc := range services {
		for i, port := range svc.Ports {
			field := "services." + svc.Name + ".ports[" + strconv.Itoa(i) + "]"
			if port.Target == 0 {
				return NewParseError(field, "target port cannot be 0", ErrServiceInvalidPort)
			}
			if port.Target > 65535 {
				return NewParseError(field, "target port must be <= 65535", ErrServiceInvalidPort)
			}
			if port.Published > 65535 {
				return NewParseError(field, "published port must be <= 65535", ErrServiceInvalidPort)
			}
		}
	}
	return nil
}
