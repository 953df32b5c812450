package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseResetStack(t *testing.T) *ParsedStack {
	t.Helper()
	stack, err := ParseStackWithEnv(resetStackYAML, map[string]string{"PWD": "/home/dev/airflow"})
	require.NoError(t, err)
	return stack
}

// =============================================================================
// ResetStackChecks Tests
// =============================================================================

func TestResetStackChecks_ValidStack(t *testing.T) {
	stack := parseResetStack(t)
	errs := ResetStackChecks(stack)
	assert.Empty(t, errs)
}

func TestResetStackChecks_MissingService(t *testing.T) {
	stack := parseResetStack(t)
	stack.Services = stack.Services[:1]

	errs := ResetStackChecks(stack)
	require.NotEmpty(t, errs)
	assert.ErrorIs(t, errs[0], ErrCheckFailed)
}

func TestResetStackChecks_UnexpectedService(t *testing.T) {
	stack := parseResetStack(t)
	stack.Services = append(stack.Services, Service{Name: "redis", Image: "redis:7"})

	errs := ResetStackChecks(stack)
	assertViolationOn(t, errs, "services.redis")
}

func TestResetStackChecks_MissingDependsOn(t *testing.T) {
	stack := parseResetStack(t)
	stack.Service("resetdb").DependsOn = nil

	errs := ResetStackChecks(stack)
	assertViolationOn(t, errs, "services.resetdb.depends_on")
}

func TestResetStackChecks_WrongCredentials(t *testing.T) {
	stack := parseResetStack(t)
	stack.Service("postgres").Environment["POSTGRES_PASSWORD"] = "hunter2"

	errs := ResetStackChecks(stack)
	assertViolationOn(t, errs, "services.postgres.environment")
}

func TestResetStackChecks_MissingVariable(t *testing.T) {
	stack := parseResetStack(t)
	delete(stack.Service("resetdb").Environment, "EXECUTOR")

	errs := ResetStackChecks(stack)
	assertViolationOn(t, errs, "services.resetdb.environment")
}

func TestResetStackChecks_MissingMount(t *testing.T) {
	stack := parseResetStack(t)
	runner := stack.Service("resetdb")
	runner.Volumes = runner.Volumes[:1] // drop plugins

	errs := ResetStackChecks(stack)
	assertViolationOn(t, errs, "services.resetdb.volumes")
}

func TestResetStackChecks_WrongMountSource(t *testing.T) {
	stack := parseResetStack(t)
	pg := stack.Service("postgres")
	pg.Volumes[0].Source = "/tmp/scratch"

	errs := ResetStackChecks(stack)
	assertViolationOn(t, errs, "services.postgres.volumes")
}

func TestResetStackChecks_WrongPort(t *testing.T) {
	stack := parseResetStack(t)
	stack.Service("resetdb").Ports[0].Published = 9090

	errs := ResetStackChecks(stack)
	assertViolationOn(t, errs, "services.resetdb.ports")
}

func TestResetStackChecks_ExtraPort(t *testing.T) {
	stack := parseResetStack(t)
	runner := stack.Service("resetdb")
	runner.Ports = append(runner.Ports, Port{Target: 5555, Published: 5555})

	errs := ResetStackChecks(stack)
	assertViolationOn(t, errs, "services.resetdb.ports")
}

func TestResetStackChecks_WrongCommand(t *testing.T) {
	stack := parseResetStack(t)
	stack.Service("resetdb").Command = []string{"local"}

	errs := ResetStackChecks(stack)
	assertViolationOn(t, errs, "services.resetdb.command")
}

func TestResetStackChecks_MissingLogRotation(t *testing.T) {
	stack := parseResetStack(t)
	stack.Service("postgres").Logging = nil

	errs := ResetStackChecks(stack)
	assertViolationOn(t, errs, "services.postgres.logging")
}

func TestResetStackChecks_WrongRotationCaps(t *testing.T) {
	stack := parseResetStack(t)
	stack.Service("resetdb").Logging.Options["max-file"] = "5"

	errs := ResetStackChecks(stack)
	assertViolationOn(t, errs, "services.resetdb.logging.options")
}

// assertViolationOn asserts at least one violation names the given field.
func assertViolationOn(t *testing.T, errs []error, field string) {
	t.Helper()
	require.NotEmpty(t, errs)
	for _, err := range errs {
		if v, ok := err.(*CheckViolation); ok && v.Field == field {
			return
		}
	}
	t.Fatalf("no violation on field %q in %v", field, errs)
}
