package compose

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// Stack File Checks
// =============================================================================

// ErrCheckFailed is the sentinel wrapped by every check violation.
var ErrCheckFailed = errors.New("stack check failed")

// CheckViolation describes one failed structural check.
type CheckViolation struct {
	Field   string
	Message string
}

func (v *CheckViolation) Error() string {
	if v.Field != "" {
		return fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return v.Message
}

func (v *CheckViolation) Unwrap() error {
	return ErrCheckFailed
}

func violation(field, format string, args ...any) error {
	return &CheckViolation{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ResetStackChecks pins down the reset stack's shape: the service set, the
// dependency edge, the literal environment, the bind mounts, the published
// port, the command, and the log rotation caps. Returns all violations found.
func ResetStackChecks(stack *ParsedStack) []error {
	var errs []error

	errs = append(errs, checkServiceSet(stack, []string{"postgres", "resetdb"})...)

	pg := stack.Service("postgres")
	runner := stack.Service("resetdb")
	if pg == nil || runner == nil {
		return errs
	}

	errs = append(errs, checkDependsOn(runner, "postgres")...)
	errs = append(errs, checkEnvironment(pg, map[string]string{
		"POSTGRES_USER":     "airflow",
		"POSTGRES_PASSWORD": "airflow",
		"POSTGRES_DB":       "airflow",
	})...)
	errs = append(errs, checkEnvironment(runner, map[string]string{
		"LOAD_EX":  "n",
		"EXECUTOR": "Local",
	})...)
	errs = append(errs, checkBindMounts(stack)...)
	errs = append(errs, checkPublishedPort(runner, 8080, 8080)...)
	errs = append(errs, checkCommand(runner, "resetdb")...)
	errs = append(errs, checkLogRotation(pg)...)
	errs = append(errs, checkLogRotation(runner)...)

	return errs
}

func checkServiceSet(stack *ParsedStack, want []string) []error {
	var errs []error

	got := stack.ServiceNames()
	sort.Strings(got)

	wanted := make(map[string]bool, len(want))
	for _, name := range want {
		wanted[name] = true
		if stack.Service(name) == nil {
			errs = append(errs, violation("services", "missing service %q", name))
		}
	}
	for _, name := range got {
		if !wanted[name] {
			errs = append(errs, violation("services."+name, "unexpected service"))
		}
	}

	return errs
}

func checkDependsOn(svc *Service, dep string) []error {
	for _, d := range svc.DependsOn {
		if d == dep {
			return nil
		}
	}
	return []error{violation(
		"services."+svc.Name+".depends_on",
		"must declare dependency on %q", dep,
	)}
}

func checkEnvironment(svc *Service, want map[string]string) []error {
	var errs []error
	field := "services." + svc.Name + ".environment"

	for key, val := range want {
		got, ok := svc.Environment[key]
		if !ok {
			errs = append(errs, violation(field, "missing variable %s", key))
			continue
		}
		if got != val {
			errs = append(errs, violation(field, "%s must be %q, got %q", key, val, got))
		}
	}

	return errs
}

// resetStackMounts are the three bind mounts the stack declares, keyed by
// container path with the expected host-path suffix as value.
var resetStackMounts = map[string]struct {
	service    string
	hostSuffix string
}{
	"/var/lib/postgresql/data":   {"postgres", "db-data"},
	"/usr/local/airflow/dags":    {"resetdb", "dags"},
	"/usr/local/airflow/plugins": {"resetdb", "plugins"},
}

func checkBindMounts(stack *ParsedStack) []error {
	var errs []error

	total := 0
	for _, svc := range stack.Services {
		total += len(svc.Volumes)
	}
	if total != len(resetStackMounts) {
		errs = append(errs, violation("volumes", "expected exactly %d bind mounts, got %d", len(resetStackMounts), total))
	}

	for target, want := range resetStackMounts {
		svc := stack.Service(want.service)
		if svc == nil {
			continue
		}
		found := false
		for _, mount := range svc.Volumes {
			if mount.Target != target {
				continue
			}
			found = true
			// Interpolation may have expanded ${PWD}, so match on the
			// trailing directory name only.
			if !strings.HasSuffix(strings.TrimRight(mount.Source, "/"), want.hostSuffix) {
				errs = append(errs, violation(
					"services."+want.service+".volumes",
					"mount for %s must come from a %q directory, got %q", target, want.hostSuffix, mount.Source,
				))
			}
		}
		if !found {
			errs = append(errs, violation(
				"services."+want.service+".volumes",
				"missing bind mount for %s", target,
			))
		}
	}

	return errs
}

func checkPublishedPort(svc *Service, published, target uint32) []error {
	field := "services." + svc.Name + ".ports"

	if len(svc.Ports) != 1 {
		return []error{violation(field, "expected exactly one port mapping, got %d", len(svc.Ports))}
	}

	port := svc.Ports[0]
	if port.Published != published || port.Target != target {
		return []error{violation(field, "expected %d:%d, got %d:%d", published, target, port.Published, port.Target)}
	}

	return nil
}

func checkCommand(svc *Service, want string) []error {
	field := "services." + svc.Name + ".command"

	if len(svc.Command) != 1 || svc.Command[0] != want {
		return []error{violation(field, "command must be exactly %q, got %v", want, svc.Command)}
	}

	return nil
}

func checkLogRotation(svc *Service) []error {
	var errs []error
	field := "services." + svc.Name + ".logging"

	if svc.Logging == nil {
		return []error{violation(field, "log rotation options are required")}
	}
	if got := svc.Logging.Options["max-size"]; got != "10m" {
		errs = append(errs, violation(field+".options", "max-size must be %q, got %q", "10m", got))
	}
	if got := svc.Logging.Options["max-file"]; got != "3" {
		errs = append(errs, violation(field+".options", "max-file must be %q, got %q", "3", got))
	}

	return errs
}
