// Package stack defines the local Airflow development stack: a Postgres
// metadata database plus the local-runner image, in three modes. It builds
// the in-memory stack model and renders the on-disk compose document.
package stack

import (
	"fmt"
	"path/filepath"

	"github.com/lakeward/airlocal/internal/core/compose"
	"github.com/lakeward/airlocal/internal/core/domain"
)

// =============================================================================
// Modes
// =============================================================================

// Mode selects which variant of the stack to build.
type Mode string

const (
	// ModeLocal runs the full local environment: Postgres plus the
	// local-runner executing the Airflow webserver and scheduler.
	ModeLocal Mode = "local"

	// ModeResetDB runs a one-shot metadata database reset against Postgres.
	ModeResetDB Mode = "resetdb"

	// ModeDBOnly starts Postgres alone.
	ModeDBOnly Mode = "dbonly"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLocal, ModeResetDB, ModeDBOnly:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q (want local, resetdb, or dbonly)", domain.ErrUnknownMode, s)
}

// OneShot reports whether the mode runs to completion rather than staying up.
func (m Mode) OneShot() bool {
	return m == ModeResetDB
}

// =============================================================================
// Stack Defaults
// =============================================================================

const (
	// DefaultPostgresImage is the metadata database image.
	DefaultPostgresImage = "postgres:10-alpine"

	// DefaultRunnerImage is the Airflow local-runner image.
	DefaultRunnerImage = "amazon/mwaa-local:2.0"

	// Default metadata database credentials. Fixed values for a throwaway
	// local database, matching what the runner image expects.
	DefaultDBUser     = "airflow"
	DefaultDBPassword = "airflow"
	DefaultDBName     = "airflow"

	// DefaultWebserverPort is the published Airflow UI port.
	DefaultWebserverPort = 8080

	// PostgresPort is the in-network Postgres listener port.
	PostgresPort = 5432

	// DefaultExecutor is the Airflow executor the runner uses.
	DefaultExecutor = "Local"

	// Container mount targets.
	dataMountTarget    = "/var/lib/postgresql/data"
	dagsMountTarget    = "/usr/local/airflow/dags"
	pluginsMountTarget = "/usr/local/airflow/plugins"

	// Host directory names under the project directory.
	dataDirName    = "db-data"
	dagsDirName    = "dags"
	pluginsDirName = "plugins"

	// Log rotation caps applied to every service.
	logMaxSize = "10m"
	logMaxFile = "3"
)

// Service names.
const (
	PostgresService = "postgres"
	ResetDBService  = "resetdb"
	LocalService    = "local-runner"
)

// =============================================================================
// Options
// =============================================================================

// Options parameterizes the stack. Zero values fall back to the defaults
// above; ProjectDir is required.
type Options struct {
	// ProjectDir is the host directory holding dags/, plugins/ and db-data/.
	ProjectDir string

	PostgresImage string
	RunnerImage   string

	DBUser     string
	DBPassword string
	DBName     string

	// WebserverPort is the host port published for the Airflow UI.
	WebserverPort int

	// LoadExamples loads Airflow's example DAGs (the LOAD_EX toggle).
	LoadExamples bool

	// Executor overrides the Airflow executor.
	Executor string
}

// DefaultOptions returns Options for the given project directory.
func DefaultOptions(projectDir string) Options {
	return Options{ProjectDir: projectDir}
}

func (o Options) withDefaults() Options {
	if o.PostgresImage == "" {
		o.PostgresImage = DefaultPostgresImage
	}
	if o.RunnerImage == "" {
		o.RunnerImage = DefaultRunnerImage
	}
	if o.DBUser == "" {
		o.DBUser = DefaultDBUser
	}
	if o.DBPassword == "" {
		o.DBPassword = DefaultDBPassword
	}
	if o.DBName == "" {
		o.DBName = DefaultDBName
	}
	if o.WebserverPort == 0 {
		o.WebserverPort = DefaultWebserverPort
	}
	if o.Executor == "" {
		o.Executor = DefaultExecutor
	}
	return o
}

// RunnerService returns the runner service name for a mode, or "" for dbonly.
func RunnerService(mode Mode) string {
	switch mode {
	case ModeResetDB:
		return ResetDBService
	case ModeLocal:
		return LocalService
	}
	return ""
}

// =============================================================================
// Build
// =============================================================================

// Build constructs the stack model for a mode. Bind-mount sources are
// expanded against ProjectDir, so the result is directly runnable.
func Build(mode Mode, opts Options) (*compose.ParsedStack, error) {
	if opts.ProjectDir == "" {
		return nil, fmt.Errorf("project directory is required")
	}
	opts = opts.withDefaults()

	stack := &compose.ParsedStack{
		Services: []compose.Service{postgresService(opts)},
	}

	switch mode {
	case ModeDBOnly:
		// Postgres alone.
	case ModeResetDB, ModeLocal:
		stack.Services = append(stack.Services, runnerService(mode, opts))
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMode, mode)
	}

	return stack, nil
}

func postgresService(opts Options) compose.Service {
	return compose.Service{
		Name:  PostgresService,
		Image: opts.PostgresImage,
		Environment: map[string]string{
			"POSTGRES_USER":     opts.DBUser,
			"POSTGRES_PASSWORD": opts.DBPassword,
			"POSTGRES_DB":       opts.DBName,
		},
		Volumes: []compose.VolumeMount{
			{
				Type:   compose.VolumeMountTypeBind,
				Source: filepath.Join(opts.ProjectDir, dataDirName),
				Target: dataMountTarget,
			},
		},
		Logging: logRotation(),
	}
}

func runnerService(mode Mode, opts Options) compose.Service {
	loadEx := "n"
	if opts.LoadExamples {
		loadEx = "y"
	}

	return compose.Service{
		Name:      RunnerService(mode),
		Image:     opts.RunnerImage,
		Command:   []string{string(mode)},
		DependsOn: []string{PostgresService},
		Environment: map[string]string{
			"LOAD_EX":  loadEx,
			"EXECUTOR": opts.Executor,
		},
		Volumes: []compose.VolumeMount{
			{
				Type:   compose.VolumeMountTypeBind,
				Source: filepath.Join(opts.ProjectDir, dagsDirName),
				Target: dagsMountTarget,
			},
			{
				Type:   compose.VolumeMountTypeBind,
				Source: filepath.Join(opts.ProjectDir, pluginsDirName),
				Target: pluginsMountTarget,
			},
		},
		Ports: []compose.Port{
			{
				Target:    DefaultWebserverPort,
				Published: uint32(opts.WebserverPort),
				Protocol:  "tcp",
			},
		},
		Logging: logRotation(),
	}
}

func logRotation() *compose.Logging {
	return &compose.Logging{
		Options: map[string]string{
			"max-size": logMaxSize,
			"max-file": logMaxFile,
		},
	}
}
